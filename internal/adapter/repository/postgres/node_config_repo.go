package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// nodeConfigRepository implements domain.NodeConfigRepository
type nodeConfigRepository struct {
	q querier
}

// Get retrieves the node configuration
func (r *nodeConfigRepository) Get(ctx context.Context, lock bool) (*domain.NodeConfig, error) {
	query := `SELECT min_debtor_id, max_debtor_id FROM node_config` + forUpdate(lock)

	var config domain.NodeConfig
	err := r.q.QueryRowContext(ctx, query).Scan(&config.MinDebtorID, &config.MaxDebtorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get node configuration: %w", err)
	}
	return &config, nil
}

// Save creates or replaces the node configuration
func (r *nodeConfigRepository) Save(ctx context.Context, config *domain.NodeConfig) error {
	query := `
		INSERT INTO node_config (min_debtor_id, max_debtor_id)
		VALUES ($1, $2)
		ON CONFLICT (is_effective) DO UPDATE
		SET min_debtor_id = EXCLUDED.min_debtor_id, max_debtor_id = EXCLUDED.max_debtor_id
	`

	if _, err := r.q.ExecContext(ctx, query, config.MinDebtorID, config.MaxDebtorID); err != nil {
		return fmt.Errorf("failed to save node configuration: %w", err)
	}
	return nil
}
