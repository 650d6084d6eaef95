/*
amortization.go - Declining-balance schedule for the credit product

PURPOSE:
  Generates the repayment schedule for credit contracts: interest charged
  on the declining balance each period, a fixed target installment, and a
  smaller settling payment at the end.

ROUNDING ISOLATION (the invariant that matters):
  The iteration carries the UNROUNDED remaining balance from period to
  period. Rounded values exist only on the emitted ScheduleItem. Feeding
  a rounded balance back into the next period's interest calculation
  compounds rounding error across the schedule.

TERMINATION:
  The loop stops when the balance falls to 0.01 or less (epsilon for
  residue) or when maxDuration periods have been generated. Exhausting
  maxDuration with balance left is ErrUnboundedAmortization - the caller
  supplied a payment too small to ever cover interest.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// amortizationEpsilon absorbs residue so schedules settle exactly.
var amortizationEpsilon = decimal.NewFromFloat(0.01)

// =============================================================================
// CREDIT CONTRACT + SCHEDULE ITEM
// =============================================================================

// CreditContract describes a credit disbursement to amortize.
type CreditContract struct {
	Amount           decimal.Decimal // principal disbursed up front
	InterestRate     decimal.Decimal // percent per month, simple on declining balance
	MonthlyPayment   decimal.Decimal // target installment
	FirstPaymentDate time.Time
	MaxDuration      int // safety bound on period count
}

// Validate checks construction-time invariants.
func (c *CreditContract) Validate() error {
	if !c.Amount.IsPositive() {
		return &InvalidContractError{Field: "amount", Reason: "must be positive"}
	}
	if c.InterestRate.IsNegative() {
		return &InvalidContractError{Field: "interest_rate", Reason: "must not be negative"}
	}
	if !c.MonthlyPayment.IsPositive() {
		return &InvalidContractError{Field: "monthly_payment", Reason: "must be positive"}
	}
	if c.MaxDuration <= 0 {
		return &InvalidContractError{Field: "max_duration", Reason: "must be positive"}
	}
	return nil
}

// ScheduleItem is one period of the amortization schedule. All amounts
// are rounded for output; the generator's internal balance is not.
type ScheduleItem struct {
	Month     int // 1-based period number
	Date      time.Time
	Payment   decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal // balance plus interest before the payment
	Remaining decimal.Decimal // balance after the payment
}

// =============================================================================
// AMORTIZATION ENGINE
// =============================================================================

// BuildAmortizationSchedule generates the declining-balance schedule.
// Deterministic: recomputing from the same CreditContract always yields
// the same schedule.
func BuildAmortizationSchedule(c CreditContract) ([]ScheduleItem, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	items := make([]ScheduleItem, 0, c.MaxDuration)

	// remaining is carried unrounded across periods.
	remaining := c.Amount

	for month := 1; month <= c.MaxDuration; month++ {
		interest := remaining.Mul(c.InterestRate).Div(hundred)
		balanceWithInterest := remaining.Add(interest)

		var payment decimal.Decimal
		if balanceWithInterest.LessThanOrEqual(c.MonthlyPayment) {
			// Final, settling payment - may be smaller than the nominal
			// installment.
			payment = balanceWithInterest
			remaining = decimal.Zero
		} else {
			payment = c.MonthlyPayment
			remaining = balanceWithInterest.Sub(payment)
		}

		items = append(items, ScheduleItem{
			Month:     month,
			Date:      c.FirstPaymentDate.AddDate(0, month-1, 0),
			Payment:   RoundDecimal(payment),
			Interest:  RoundDecimal(interest),
			Principal: RoundDecimal(balanceWithInterest),
			Remaining: RoundDecimal(remaining),
		})

		if remaining.LessThanOrEqual(amortizationEpsilon) {
			return items, nil
		}
	}

	return items, ErrUnboundedAmortization
}
