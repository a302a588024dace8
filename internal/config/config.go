package config

import (
	"time"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// Config represents the full service configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	GRPC      ServerConfig    `mapstructure:"grpc"`
	Ops       ServerConfig    `mapstructure:"ops"`
	Log       LogConfig       `mapstructure:"log"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Node      NodeConfig      `mapstructure:"node"`
	Accounts  AccountsConfig  `mapstructure:"accounts"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Transfers TransfersConfig `mapstructure:"transfers"`
}

// DatabaseConfig configures the PostgreSQL connection
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	// How many times a unit of work is attempted before giving up
	MaxAttempts int `mapstructure:"max_attempts"`
}

// ServerConfig configures a listening server
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// LimitsConfig configures the per-debtor rate limits
type LimitsConfig struct {
	MaxActionsPerMonth  int `mapstructure:"max_actions_per_month"`
	MaxRunningTransfers int `mapstructure:"max_running_transfers"`
	MaxLimitsCount      int `mapstructure:"max_limits_count"`
	MaxDocumentsPerYear int `mapstructure:"max_documents_per_year"`
}

// NodeConfig is the debtor ID range seeded on startup when the node has
// not been configured yet. Both bounds zero means no seeding.
type NodeConfig struct {
	MinDebtorID int64 `mapstructure:"min_debtor_id"`
	MaxDebtorID int64 `mapstructure:"max_debtor_id"`
}

// IsSet reports whether a range is configured
func (n NodeConfig) IsSet() bool {
	return n.MinDebtorID != 0 || n.MaxDebtorID != 0
}

// AccountsConfig configures account maintenance
type AccountsConfig struct {
	InterestRateChangeMinInterval time.Duration `mapstructure:"interest_rate_change_min_interval"`
}

// RelayConfig configures the outbox relay
type RelayConfig struct {
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`

	// gRPC address of the accounting service; empty logs the signals instead
	Target string `mapstructure:"target"`
}

// TransfersConfig configures the cleanup of finalized transfers
type TransfersConfig struct {
	FlushAfter time.Duration `mapstructure:"flush_after"`
}

// DomainLimits returns the limits enforced by the services
func (c *Config) DomainLimits() domain.Limits {
	return domain.Limits{
		MaxActionsPerMonth:   c.Limits.MaxActionsPerMonth,
		MaxRunningTransfers:  c.Limits.MaxRunningTransfers,
		MaxLimitsCount:       c.Limits.MaxLimitsCount,
		MaxDocumentsPerYear:  c.Limits.MaxDocumentsPerYear,
		InterestRateMinDelay: c.Accounts.InterestRateChangeMinInterval,
	}
}
