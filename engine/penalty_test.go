package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mutuelle/caisse-engine/engine"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DAYS LATE TESTS
// =============================================================================

func TestDaysLate_OnOrBeforeDueIsZero(t *testing.T) {
	due := day(2025, time.January, 10)

	assert.Equal(t, 0, engine.DaysLate(due, day(2025, time.January, 10)))
	assert.Equal(t, 0, engine.DaysLate(due, day(2025, time.January, 5)))
}

func TestDaysLate_WholeDays(t *testing.T) {
	due := day(2025, time.January, 10)

	assert.Equal(t, 1, engine.DaysLate(due, day(2025, time.January, 11)))
	assert.Equal(t, 12, engine.DaysLate(due, day(2025, time.January, 22)))
}

func TestDaysLate_IgnoresTimeOfDay(t *testing.T) {
	// GIVEN: Due at 23:00, evaluated at 01:00 next day
	// WHEN: Computing lateness
	// THEN: One whole day - comparison is at day granularity

	due := time.Date(2025, time.January, 10, 23, 0, 0, 0, time.UTC)
	eval := time.Date(2025, time.January, 11, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, engine.DaysLate(due, eval))
}

// =============================================================================
// PENALTY CALCULATOR TESTS
// =============================================================================

func TestComputePenalty_GraceWindowOwesNothing(t *testing.T) {
	// GIVEN: An installment of 10000 due Jan 10
	// WHEN: Paying 0 to 3 days late
	// THEN: No penalty

	due := day(2025, time.January, 10)
	amount := decimal.NewFromInt(10000)
	tiers := engine.DefaultPenaltyTiers()

	for d := 10; d <= 13; d++ {
		p := engine.ComputePenalty(due, day(2025, time.January, d), amount, tiers)
		assert.True(t, p.IsZero(), "day %d must owe nothing", d)
	}
}

func TestComputePenalty_TierBoundaries(t *testing.T) {
	due := day(2025, time.January, 10)
	amount := decimal.NewFromInt(10000)
	tiers := engine.DefaultPenaltyTiers()

	cases := []struct {
		name    string
		paidDay int
		want    int64
	}{
		{"4 days late enters first tier", 14, 500},
		{"7 days late still first tier", 17, 500},
		{"8 days late enters second tier", 18, 1000},
		{"12 days late still second tier", 22, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := engine.ComputePenalty(due, day(2025, time.January, tc.paidDay), amount, tiers)
			assert.True(t, p.Equal(decimal.NewFromInt(tc.want)),
				"want %d, got %s", tc.want, p)
		})
	}
}

func TestComputePenalty_BeyondDefaultThresholdIsZero(t *testing.T) {
	// GIVEN: An installment 13 days late
	// WHEN: Computing the penalty
	// THEN: Zero - past the default threshold the calculator is not the
	//       authority; the contract defaults instead

	due := day(2025, time.January, 10)
	p := engine.ComputePenalty(due, day(2025, time.January, 23),
		decimal.NewFromInt(10000), engine.DefaultPenaltyTiers())
	assert.True(t, p.IsZero())
}

func TestComputePenalty_MonotoneOverTiers(t *testing.T) {
	// Penalty never decreases as lateness grows within 4..12 days.
	due := day(2025, time.January, 10)
	amount := decimal.NewFromInt(7500)
	tiers := engine.DefaultPenaltyTiers()

	prev := decimal.Zero
	for d := 4; d <= 12; d++ {
		p := engine.ComputePenalty(due, due.AddDate(0, 0, d), amount, tiers)
		assert.True(t, p.GreaterThanOrEqual(prev),
			"penalty decreased at %d days late", d)
		prev = p
	}
}

func TestComputePenalty_RoundsTierAmount(t *testing.T) {
	// 333 at 5% = 16.65 -> 17
	due := day(2025, time.January, 10)
	p := engine.ComputePenalty(due, day(2025, time.January, 15),
		decimal.NewFromInt(333), engine.DefaultPenaltyTiers())
	assert.True(t, p.Equal(decimal.NewFromInt(17)))
}
