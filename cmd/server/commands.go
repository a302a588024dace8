package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	grpcadapter "github.com/epandurski/swpt-debtors/internal/adapter/grpc"
	"github.com/epandurski/swpt-debtors/internal/adapter/publisher"
	"github.com/epandurski/swpt-debtors/internal/usecase/debtor"
	"github.com/epandurski/swpt-debtors/internal/usecase/relay"
	"github.com/epandurski/swpt-debtors/internal/usecase/transfer"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.log.Info("database schema is up to date")
			return nil
		},
	}
}

func configureNodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure-node MIN_DEBTOR_ID MAX_DEBTOR_ID",
		Short: "Set the range of debtor IDs this node is responsible for",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minDebtorID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid MIN_DEBTOR_ID: %w", err)
			}
			maxDebtorID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid MAX_DEBTOR_ID: %w", err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			debtors := debtor.NewDebtorService(a.store, a.cfg.DomainLimits(), a.log)
			if err := debtors.ConfigureNode(cmd.Context(), minDebtorID, maxDebtorID); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"min_debtor_id": minDebtorID,
				"max_debtor_id": maxDebtorID,
			}).Info("node configured")
			return nil
		},
	}
}

func flushTransfersCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "flush-transfers",
		Short: "Delete running transfers finalized before a number of days ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			age := a.cfg.Transfers.FlushAfter
			if days > 0 {
				age = time.Duration(days) * 24 * time.Hour
			}

			transfers := transfer.NewTransferService(a.store, a.cfg.DomainLimits(), a.log)
			_, err = transfers.FlushFinalized(cmd.Context(), time.Now().Add(-age))
			return err
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "age in days of the finalized transfers to delete (default transfers.flush_after)")
	return cmd
}

func flushSignalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush-signals",
		Short: "Publish all pending outbound signals and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			pub, closePublisher, err := a.publisher()
			if err != nil {
				return err
			}
			defer closePublisher()

			n, err := relay.NewRelay(a.store, pub, a.cfg.Relay.BatchSize, a.log).Flush(cmd.Context())
			a.log.WithField("published", n).Info("outbox flushed")
			return err
		},
	}
}

// publisher returns the configured outbound signal publisher and a function
// releasing it
func (a *app) publisher() (relay.Publisher, func(), error) {
	if a.cfg.Relay.Target == "" {
		a.log.Warn("relay.target is not set, outbound signals are only logged")
		return publisher.NewLogPublisher(a.log), func() {}, nil
	}

	client, err := grpcadapter.NewSignalClient(a.cfg.Relay.Target)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close signal client")
		}
	}, nil
}

// flushFinalizedTransfers is the periodic cleanup run by serve
func (a *app) flushFinalizedTransfers(ctx context.Context, transfers *transfer.TransferService) {
	if _, err := transfers.FlushFinalized(ctx, time.Now().Add(-a.cfg.Transfers.FlushAfter)); err != nil {
		a.log.WithError(err).Error("failed to flush finalized transfers")
	}
}
