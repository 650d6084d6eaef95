/*
penalty.go - Late-payment penalty computation

PURPOSE:
  Classifies how late a payment is relative to its due date and returns
  the penalty owed, proportional to the installment amount.

DAY THRESHOLDS (fixed policy, observed consistently in the association's
rules - not tenant-configurable):
  days late 0      -> on time, no penalty
  days late 1-3    -> grace window, no penalty
  days late 4-12   -> penalty tier applies
  days late > 12   -> the installment drives the contract to default;
                      penalty semantics no longer apply (administrative
                      handling, not monetary)

TIER RATES:
  The percentage per tier is injected configuration, not hard-coded
  business logic: callers pass a tier table. DefaultPenaltyTiers ships
  the association's standard rates.

SEE ALSO:
  - state.go: Owns the >12 days default transition
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed lateness thresholds, in days after the due date.
const (
	penaltyGraceDays   = 3
	penaltyDefaultDays = 12
)

// =============================================================================
// PENALTY TIERS - Injected rate configuration
// =============================================================================

// PenaltyTier maps an inclusive day range to a rate percent of the
// installment amount.
type PenaltyTier struct {
	FromDay int
	ToDay   int
	Rate    decimal.Decimal
}

// DefaultPenaltyTiers returns the association's standard tier table:
// 5% for 4-7 days late, 10% for 8-12 days late.
func DefaultPenaltyTiers() []PenaltyTier {
	return []PenaltyTier{
		{FromDay: 4, ToDay: 7, Rate: decimal.NewFromInt(5)},
		{FromDay: 8, ToDay: 12, Rate: decimal.NewFromInt(10)},
	}
}

// =============================================================================
// PENALTY CALCULATOR
// =============================================================================

// DaysLate returns whole days elapsed after the due date; zero when the
// evaluation date is on or before it. Both dates are compared at day
// granularity.
func DaysLate(dueAt, evalAt time.Time) int {
	due := truncateDay(dueAt)
	eval := truncateDay(evalAt)
	if !eval.After(due) {
		return 0
	}
	return int(eval.Sub(due).Hours() / 24)
}

// ComputePenalty returns the rounded penalty for a payment evaluated at
// evalAt against its due date.
//
// On-time and grace-window payments owe nothing. Beyond 12 days late the
// calculator is not the authority - the contract defaults instead - and
// it returns zero.
func ComputePenalty(dueAt, evalAt time.Time, installmentAmount decimal.Decimal, tiers []PenaltyTier) decimal.Decimal {
	late := DaysLate(dueAt, evalAt)
	if late <= penaltyGraceDays || late > penaltyDefaultDays {
		return decimal.Zero
	}
	for _, tier := range tiers {
		if late >= tier.FromDay && late <= tier.ToDay {
			return RoundDecimal(installmentAmount.Mul(tier.Rate).Div(decimal.NewFromInt(100)))
		}
	}
	return decimal.Zero
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
