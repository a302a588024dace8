package domain

import (
	"fmt"
	"math/rand/v2"
)

// NodeConfig is the process-wide configuration of the node: the inclusive
// range of debtor IDs the node is authoritative for.
type NodeConfig struct {
	MinDebtorID int64
	MaxDebtorID int64
}

// Validate ensures the node configuration adheres to domain rules
func (c *NodeConfig) Validate() error {
	if c.MinDebtorID > c.MaxDebtorID {
		return fmt.Errorf("%w: min debtor ID must not exceed max debtor ID", ErrInvalidInput)
	}
	return nil
}

// IsResponsibleFor reports whether debtorID is within the node's range.
// A nil configuration is responsible for nothing.
func (c *NodeConfig) IsResponsibleFor(debtorID int64) bool {
	return c != nil && c.MinDebtorID <= debtorID && debtorID <= c.MaxDebtorID
}

// RandomDebtorID returns a random debtor ID within the node's range.
func (c *NodeConfig) RandomDebtorID() int64 {
	span := uint64(c.MaxDebtorID - c.MinDebtorID)
	if span == ^uint64(0) {
		return int64(rand.Uint64())
	}
	return c.MinDebtorID + int64(rand.Uint64N(span+1))
}
