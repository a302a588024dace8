package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epandurski/swpt-debtors/internal/adapter/repository/postgres"
	"github.com/epandurski/swpt-debtors/internal/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "swpt-debtors",
		Short:         "Debtors service: manages debtors and their transfers against the accounting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	// Add subcommands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configureNodeCmd())
	rootCmd.AddCommand(flushTransfersCmd())
	rootCmd.AddCommand(flushSignalsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command needs: configuration, logger and database
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	db    *postgres.DB
	store *postgres.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: postgres.NewStore(db, cfg.Database.MaxAttempts),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}
