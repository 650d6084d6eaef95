/*
schedule.go - Savings schedule / bonus engine

PURPOSE:
  Produces the full projected repayment table for a savings plan: one row
  per installment with its due date, amount, bonus rate and rounded bonus
  amount, plus totals.

  The same function backs both the pre-contract simulation (hypothetical
  input, nothing persisted) and the authoritative schedule once a
  contract exists. Only the provenance of the inputs differs.

NO ACTIVE SETTINGS:
  A missing settings record does not abort the build. The table renders
  with explicit zero-bonus rows and NoActiveSettings=true so the caller
  can block creation or show a configuration warning.
*/
package engine

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// ScheduleInput is what the builder needs. It deliberately carries no
// contract identity so simulations run without a persisted contract.
type ScheduleInput struct {
	CaisseType        CaisseType
	InstallmentAmount decimal.Decimal
	Installments      int
	StartDate         time.Time
}

// InputFromContract derives the schedule input of an existing contract.
func InputFromContract(c *Contract) ScheduleInput {
	return ScheduleInput{
		CaisseType:        c.CaisseType,
		InstallmentAmount: c.InstallmentAmount,
		Installments:      c.Installments,
		StartDate:         c.StartDate,
	}
}

// ScheduleRow is one projected installment.
type ScheduleRow struct {
	Index       int
	DueAt       time.Time
	Amount      decimal.Decimal
	BonusRate   decimal.Decimal // percent
	BonusAmount decimal.Decimal // rounded

	// BonusLabel is the human-facing marker of when bonus starts applying:
	// "—" inside the grace window, "M{i+1}" afterwards.
	BonusLabel string
}

// Schedule is the full projected table with aggregates.
type Schedule struct {
	Rows        []ScheduleRow
	TotalAmount decimal.Decimal
	TotalBonus  decimal.Decimal

	// NoActiveSettings is set when any row beyond the grace window had no
	// configured rate. The rows still render with zero bonus.
	NoActiveSettings bool
}

// =============================================================================
// SCHEDULE BUILDER
// =============================================================================

// BuildSchedule produces the projected table for a savings plan. Pure,
// no I/O: settings are a parameter, and a nil settings record yields a
// zero-bonus table flagged NoActiveSettings.
func BuildSchedule(in ScheduleInput, settings *BonusSettings) (*Schedule, error) {
	if err := validateScheduleInput(in); err != nil {
		return nil, err
	}

	cycle := in.CaisseType.Cycle()
	s := &Schedule{
		Rows:        make([]ScheduleRow, 0, in.Installments),
		TotalAmount: decimal.Zero,
		TotalBonus:  decimal.Zero,
	}

	for i := 0; i < in.Installments; i++ {
		rate, configured := ResolveBonusRate(i, settings)
		if !configured {
			s.NoActiveSettings = true
		}

		row := ScheduleRow{
			Index:       i,
			DueAt:       cycle.DueDate(in.StartDate, i),
			Amount:      in.InstallmentAmount,
			BonusRate:   rate,
			BonusAmount: BonusAmount(in.InstallmentAmount, rate),
			BonusLabel:  bonusLabel(i),
		}
		s.Rows = append(s.Rows, row)
		s.TotalAmount = s.TotalAmount.Add(row.Amount)
		s.TotalBonus = s.TotalBonus.Add(row.BonusAmount)
	}

	return s, nil
}

func validateScheduleInput(in ScheduleInput) error {
	if !in.CaisseType.Valid() {
		return &InvalidContractError{Field: "caisse_type", Reason: "unknown caisse type"}
	}
	if !in.InstallmentAmount.IsPositive() {
		return &InvalidContractError{Field: "installment_amount", Reason: "must be positive"}
	}
	if in.Installments <= 0 {
		return &InvalidContractError{Field: "installments", Reason: "must be positive"}
	}
	if in.StartDate.IsZero() {
		return &InvalidContractError{Field: "start_date", Reason: "required"}
	}
	return nil
}

func bonusLabel(i int) string {
	if i < bonusGraceMonths {
		return "—"
	}
	return "M" + strconv.Itoa(i+1)
}
