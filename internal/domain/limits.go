package domain

import "time"

// Limits holds the per-debtor caps enforced by the node
type Limits struct {
	MaxActionsPerMonth   int
	MaxRunningTransfers  int
	MaxLimitsCount       int
	MaxDocumentsPerYear  int
	InterestRateMinDelay time.Duration // minimum interval between interest rate changes of an account
}

// DefaultLimits returns the caps used when nothing is configured
func DefaultLimits() Limits {
	return Limits{
		MaxActionsPerMonth:   300,
		MaxRunningTransfers:  300,
		MaxLimitsCount:       10,
		MaxDocumentsPerYear:  1000,
		InterestRateMinDelay: 7 * 24 * time.Hour,
	}
}
