package seeder

import (
	"context"
	"fmt"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// NodeSeeder ensures the node configuration exists on startup
type NodeSeeder struct {
	store domain.Store
}

// NewNodeSeeder creates a new NodeSeeder instance
func NewNodeSeeder(store domain.Store) *NodeSeeder {
	return &NodeSeeder{
		store: store,
	}
}

// Seed stores the given debtor ID range as the node configuration unless the
// node is already configured. An existing configuration is never replaced;
// use the configure-node command for that. It reports whether a configuration
// was created.
func (s *NodeSeeder) Seed(ctx context.Context, minDebtorID, maxDebtorID int64) (bool, error) {
	config := &domain.NodeConfig{MinDebtorID: minDebtorID, MaxDebtorID: maxDebtorID}
	if err := config.Validate(); err != nil {
		return false, err
	}

	var created bool
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		created = false
		existing, err := tx.NodeConfigs().Get(ctx, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		if err := tx.NodeConfigs().Save(ctx, config); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed node configuration: %w", err)
	}
	return created, nil
}
