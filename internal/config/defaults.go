package config

import (
	"time"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	limits := domain.DefaultLimits()
	return &Config{
		Database: DatabaseConfig{
			URL:         "host=localhost port=5432 user=postgres password=postgres dbname=debtors sslmode=disable",
			MaxAttempts: 5,
		},
		GRPC: ServerConfig{Addr: ":8080"},
		Ops:  ServerConfig{Addr: ":9090"},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Limits: LimitsConfig{
			MaxActionsPerMonth:  limits.MaxActionsPerMonth,
			MaxRunningTransfers: limits.MaxRunningTransfers,
			MaxLimitsCount:      limits.MaxLimitsCount,
			MaxDocumentsPerYear: limits.MaxDocumentsPerYear,
		},
		Accounts: AccountsConfig{
			InterestRateChangeMinInterval: limits.InterestRateMinDelay,
		},
		Relay: RelayConfig{
			Schedule:  "@every 2s",
			BatchSize: 1000,
		},
		Transfers: TransfersConfig{
			FlushAfter: 14 * 24 * time.Hour,
		},
	}
}
