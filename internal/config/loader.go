package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys, with dots replaced by underscores: SWPT_DEBTORS_DATABASE_URL.
const EnvPrefix = "SWPT_DEBTORS"

// Load reads the optional YAML file at path, applies environment overrides
// on top of the defaults and validates the result
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that environment variables can
// override keys missing from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.max_attempts", cfg.Database.MaxAttempts)
	v.SetDefault("grpc.addr", cfg.GRPC.Addr)
	v.SetDefault("ops.addr", cfg.Ops.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("limits.max_actions_per_month", cfg.Limits.MaxActionsPerMonth)
	v.SetDefault("limits.max_running_transfers", cfg.Limits.MaxRunningTransfers)
	v.SetDefault("limits.max_limits_count", cfg.Limits.MaxLimitsCount)
	v.SetDefault("limits.max_documents_per_year", cfg.Limits.MaxDocumentsPerYear)
	v.SetDefault("node.min_debtor_id", cfg.Node.MinDebtorID)
	v.SetDefault("node.max_debtor_id", cfg.Node.MaxDebtorID)
	v.SetDefault("accounts.interest_rate_change_min_interval", cfg.Accounts.InterestRateChangeMinInterval)
	v.SetDefault("relay.schedule", cfg.Relay.Schedule)
	v.SetDefault("relay.batch_size", cfg.Relay.BatchSize)
	v.SetDefault("relay.target", cfg.Relay.Target)
	v.SetDefault("transfers.flush_after", cfg.Transfers.FlushAfter)
}

// Validate checks the configuration for values the service can not run with
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Database.MaxAttempts < 1 {
		errs = append(errs, errors.New("database.max_attempts must be positive"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Limits.MaxActionsPerMonth < 1 || c.Limits.MaxRunningTransfers < 1 ||
		c.Limits.MaxLimitsCount < 1 || c.Limits.MaxDocumentsPerYear < 1 {
		errs = append(errs, errors.New("limits must be positive"))
	}
	if c.Node.MinDebtorID > c.Node.MaxDebtorID {
		errs = append(errs, errors.New("node.min_debtor_id must not exceed node.max_debtor_id"))
	}
	if c.Accounts.InterestRateChangeMinInterval < 0 {
		errs = append(errs, errors.New("accounts.interest_rate_change_min_interval must not be negative"))
	}
	if _, err := cron.ParseStandard(c.Relay.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("relay.schedule: %w", err))
	}
	if c.Relay.BatchSize < 1 {
		errs = append(errs, errors.New("relay.batch_size must be positive"))
	}
	if c.Transfers.FlushAfter <= 0 {
		errs = append(errs, errors.New("transfers.flush_after must be positive"))
	}

	return errors.Join(errs...)
}

// NewLogger builds the logger described by the configuration
func (c LogConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if c.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
