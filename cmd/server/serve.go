package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/epandurski/swpt-debtors/internal/adapter/grpc"
	"github.com/epandurski/swpt-debtors/internal/adapter/httpapi"
	"github.com/epandurski/swpt-debtors/internal/usecase/account"
	"github.com/epandurski/swpt-debtors/internal/usecase/debtor"
	"github.com/epandurski/swpt-debtors/internal/usecase/inbox"
	"github.com/epandurski/swpt-debtors/internal/usecase/relay"
	"github.com/epandurski/swpt-debtors/internal/usecase/seeder"
	"github.com/epandurski/swpt-debtors/internal/usecase/transfer"
)

const (
	flushTransfersSchedule = "@daily"
	shutdownTimeout        = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC server, the ops endpoints and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	defer stop()

	// 1. Seed the node configuration
	if a.cfg.Node.IsSet() {
		created, err := seeder.NewNodeSeeder(a.store).Seed(ctx, a.cfg.Node.MinDebtorID, a.cfg.Node.MaxDebtorID)
		if err != nil {
			return err
		}
		if created {
			a.log.WithField("min_debtor_id", a.cfg.Node.MinDebtorID).
				WithField("max_debtor_id", a.cfg.Node.MaxDebtorID).
				Info("node configuration seeded")
		}
	}

	// 2. Initialize Services (Use Cases)
	limits := a.cfg.DomainLimits()
	debtorService := debtor.NewDebtorService(a.store, limits, a.log)
	transferService := transfer.NewTransferService(a.store, limits, a.log)
	accountService := account.NewAccountService(a.store, limits, a.log)
	dispatcher := inbox.NewDispatcher(accountService, transferService, a.log)

	// 3. Start the outbox relay and the periodic cleanup
	pub, closePublisher, err := a.publisher()
	if err != nil {
		return err
	}
	defer closePublisher()

	scheduler, err := relay.NewRelay(a.store, pub, a.cfg.Relay.BatchSize, a.log).Schedule(ctx, a.cfg.Relay.Schedule)
	if err != nil {
		return err
	}
	if _, err := scheduler.AddFunc(flushTransfersSchedule, func() {
		a.flushFinalizedTransfers(ctx, transferService)
	}); err != nil {
		return err
	}

	// 4. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.UnaryInterceptor(grpcadapter.LoggingInterceptor(a.log)),
	)
	grpcadapter.RegisterDebtorsServer(grpcServer, grpcadapter.NewServer(dispatcher, debtorService, transferService))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		a.log.WithField("addr", a.cfg.GRPC.Addr).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// 5. Start the ops endpoints
	opsServer := &http.Server{
		Addr:              a.cfg.Ops.Addr,
		Handler:           httpapi.NewRouter(a.db),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.WithField("addr", a.cfg.Ops.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		a.log.Info("shutting down gracefully")
		err = nil
	case err = <-errCh:
		a.log.WithError(err).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("failed to stop ops server")
	}
	grpcServer.GracefulStop()
	<-scheduler.Stop().Done()
	a.log.Info("servers stopped")
	return err
}
