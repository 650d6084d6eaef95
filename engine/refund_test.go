package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutuelle/caisse-engine/engine"
)

// =============================================================================
// FINAL REFUND TESTS
// =============================================================================

func TestComputeRefund_FinalRequiresMaturity(t *testing.T) {
	// GIVEN: 11 of 12 installments paid
	// WHEN: Computing a FINAL refund
	// THEN: ErrRefundNotDue

	c := twelveMonthContract()
	payments := paidThrough(c, 11)

	_, err := engine.ComputeRefund(c, payments, engine.RefundFinal, nil)
	assert.ErrorIs(t, err, engine.ErrRefundNotDue)
}

func TestComputeRefund_FinalSumsFullSchedule(t *testing.T) {
	// GIVEN: All 12 installments of 10000 paid, 2% bonus from month 3
	// WHEN: Computing the FINAL refund
	// THEN: Nominal 120000 plus 9 * 200 bonus

	c := twelveMonthContract()
	payments := paidThrough(c, 12)
	settings := linearSettings(engine.CaisseStandard, 12, 2)

	amounts, err := engine.ComputeRefund(c, payments, engine.RefundFinal, settings)
	require.NoError(t, err)

	assert.True(t, amounts.AmountNominal.Equal(decimal.NewFromInt(120000)))
	assert.True(t, amounts.AmountBonus.Equal(decimal.NewFromInt(1800)))
	assert.True(t, amounts.Total().Equal(decimal.NewFromInt(121800)))
}

// =============================================================================
// EARLY REFUND TESTS
// =============================================================================

func TestComputeRefund_EarlyRequiresRequestMarker(t *testing.T) {
	c := twelveMonthContract()
	payments := paidThrough(c, 5)

	_, err := engine.ComputeRefund(c, payments, engine.RefundEarly, nil)
	assert.ErrorIs(t, err, engine.ErrInvalidContract)
}

func TestComputeRefund_EarlyCountsOnlyPaymentsBeforeRequest(t *testing.T) {
	// GIVEN: 5 of 12 installments paid, withdrawal requested June 1
	// WHEN: Computing the EARLY refund
	// THEN: Nominal 50000; bonus only for months 3 and 4 (grace window
	//       earns nothing)

	c := twelveMonthContract()
	payments := paidThrough(c, 5) // paid on due dates Jan..May 1
	requested := day(2025, time.June, 1)
	c.WithdrawalRequestedAt = &requested
	c.WithdrawalType = engine.RefundEarly

	settings := linearSettings(engine.CaisseStandard, 12, 2)
	amounts, err := engine.ComputeRefund(c, payments, engine.RefundEarly, settings)
	require.NoError(t, err)

	assert.True(t, amounts.AmountNominal.Equal(decimal.NewFromInt(50000)))
	assert.True(t, amounts.AmountBonus.Equal(decimal.NewFromInt(400)),
		"only months 3 and 4 earn bonus, got %s", amounts.AmountBonus)
}

func TestComputeRefund_EarlyExcludesPaymentAtOrAfterRequest(t *testing.T) {
	// GIVEN: A payment made exactly at the request instant
	// WHEN: Computing the EARLY refund
	// THEN: Excluded - only strictly-before payments count

	c := twelveMonthContract()
	requested := day(2025, time.March, 15)
	c.WithdrawalRequestedAt = &requested
	c.WithdrawalType = engine.RefundEarly

	payments := []engine.Payment{
		paidInstallment(c, 0, day(2025, time.January, 1)),
		paidInstallment(c, 1, day(2025, time.February, 1)),
		paidInstallment(c, 2, requested), // at the instant, excluded
	}

	amounts, err := engine.ComputeRefund(c, payments, engine.RefundEarly, nil)
	require.NoError(t, err)
	assert.True(t, amounts.AmountNominal.Equal(decimal.NewFromInt(20000)))
}

func TestComputeRefund_UnknownTypeRejected(t *testing.T) {
	c := twelveMonthContract()
	_, err := engine.ComputeRefund(c, nil, engine.RefundType("partial"), nil)
	assert.ErrorIs(t, err, engine.ErrInvalidContract)
}

func TestComputeRefund_BonusPerInstallmentNotBlended(t *testing.T) {
	// GIVEN: A table with different rates per month (3 -> 1%, 4 -> 3%)
	// WHEN: Computing a refund over those installments
	// THEN: Each installment earns at its own month's rate

	c := twelveMonthContract()
	payments := paidThrough(c, 5)
	requested := day(2025, time.June, 1)
	c.WithdrawalRequestedAt = &requested
	c.WithdrawalType = engine.RefundEarly

	settings := &engine.BonusSettings{
		ID:         "settings-var",
		CaisseType: engine.CaisseStandard,
		BonusTable: map[int]decimal.Decimal{
			3: decimal.NewFromInt(1),
			4: decimal.NewFromInt(3),
		},
	}

	amounts, err := engine.ComputeRefund(c, payments, engine.RefundEarly, settings)
	require.NoError(t, err)
	// 10000*1% + 10000*3% = 100 + 300
	assert.True(t, amounts.AmountBonus.Equal(decimal.NewFromInt(400)))
}
