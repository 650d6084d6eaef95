/*
Package engine provides the core contract financial engine.

PURPOSE:
  This package contains the pure types and algorithms for pooled-savings
  and micro-credit contracts: the lifecycle state machine, the versioned
  bonus-rate resolution, late-payment penalties, the projected savings
  schedule, withdrawal payouts, and the declining-balance amortization
  schedule for the credit product.

KEY CONCEPTS IN THIS FILE (types.go):
  - CaisseType: Product variant (standard, charitable, daily, free, credit)
  - Contract: A member's savings plan (amount, duration, start date)
  - Payment: An immutable ledger entry for one installment
  - Refund: A computed early/final withdrawal payout

DESIGN PRINCIPLES:
  1. Purity: Every calculation is a function of explicit inputs. Settings
     and "today" are parameters, never ambient reads.
  2. Precision: Uses decimal.Decimal for all money; rounding happens only
     at output boundaries (see rounding.go).
  3. Derived state: Contract status is recomputed from the payment ledger,
     never trusted as ground truth.
  4. Auditability: Payments are append-only; corrections are new records.

SEE ALSO:
  - settings.go: Versioned bonus tables and rate resolution
  - state.go: Lifecycle state machine
  - schedule.go: Savings schedule / bonus engine
  - amortization.go: Credit repayment schedule
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CAISSE TYPE - Product variant
// =============================================================================

type CaisseType string

const (
	CaisseStandard           CaisseType = "standard"
	CaisseStandardCharitable CaisseType = "standard_charitable"
	CaisseJournaliere        CaisseType = "journaliere"
	CaisseLibre              CaisseType = "libre"
	CaisseCredit             CaisseType = "credit"
)

// AllCaisseTypes lists every product variant, in display order.
func AllCaisseTypes() []CaisseType {
	return []CaisseType{
		CaisseStandard,
		CaisseStandardCharitable,
		CaisseJournaliere,
		CaisseLibre,
		CaisseCredit,
	}
}

// Valid reports whether t is a known product variant.
func (t CaisseType) Valid() bool {
	switch t {
	case CaisseStandard, CaisseStandardCharitable, CaisseJournaliere, CaisseLibre, CaisseCredit:
		return true
	}
	return false
}

// Cycle returns the installment cadence for the variant. The daily caisse
// collects one installment per day; every other variant is monthly.
func (t CaisseType) Cycle() Cycle {
	if t == CaisseJournaliere {
		return CycleDaily
	}
	return CycleMonthly
}

// =============================================================================
// CYCLE - Installment cadence
// =============================================================================

type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleDaily   Cycle = "daily"
)

// DueDate returns the due date of installment i (0-based) for a contract
// starting at start. Monthly cycles use calendar month arithmetic, not
// fixed 30-day increments.
func (c Cycle) DueDate(start time.Time, i int) time.Time {
	if c == CycleDaily {
		return start.AddDate(0, 0, i)
	}
	return start.AddDate(0, i, 0)
}

// =============================================================================
// CONTRACT - A member's savings plan
// =============================================================================

type ContractID string
type MemberID string

type Contract struct {
	ID         ContractID
	CaisseType CaisseType
	MemberID   MemberID

	// InstallmentAmount is the recurring amount per cycle (monthly for most
	// variants, daily for the journaliere caisse).
	InstallmentAmount decimal.Decimal

	// Installments is the number of cycles in the plan.
	Installments int

	// StartDate is immutable after creation. Installment i is due at
	// CaisseType.Cycle().DueDate(StartDate, i).
	StartDate time.Time

	// Status is a cached projection of RecomputeState, refreshed after
	// every ledger mutation. The ledger is the ground truth.
	Status State

	// SettingsID pins the settings version used at creation, for
	// deterministic replay of the original simulation.
	SettingsID SettingsID

	// Lifecycle markers. These are administrative facts recorded on the
	// contract so that state remains a pure function of
	// (contract, payments, today).
	WithdrawalRequestedAt *time.Time
	WithdrawalType        RefundType
	RefundRecordedAt      *time.Time
	RefundSettledAt       *time.Time
	RescindedAt           *time.Time

	CreatedAt time.Time
}

// Validate checks construction-time invariants.
func (c *Contract) Validate() error {
	if !c.CaisseType.Valid() {
		return &InvalidContractError{Field: "caisse_type", Reason: "unknown caisse type"}
	}
	if !c.InstallmentAmount.IsPositive() {
		return &InvalidContractError{Field: "installment_amount", Reason: "must be positive"}
	}
	if c.Installments <= 0 {
		return &InvalidContractError{Field: "installments", Reason: "must be positive"}
	}
	if c.StartDate.IsZero() {
		return &InvalidContractError{Field: "start_date", Reason: "required"}
	}
	return nil
}

// DueDate returns the due date of installment i.
func (c *Contract) DueDate(i int) time.Time {
	return c.CaisseType.Cycle().DueDate(c.StartDate, i)
}

// TotalNominal is the full plan value (amount * installments), unrounded.
func (c *Contract) TotalNominal() decimal.Decimal {
	return c.InstallmentAmount.Mul(decimal.NewFromInt(int64(c.Installments)))
}

// =============================================================================
// PAYMENT - Immutable installment ledger entry
// =============================================================================

// Payment records one installment. The ledger is append-only: PaidAt and
// PenaltyApplied are set exactly once when the payment is recorded, and
// corrections are new records, never mutations.
type Payment struct {
	ContractID     ContractID
	DueIndex       int // 0-based installment index, unique per contract
	DueAt          time.Time
	PaidAt         *time.Time
	Amount         decimal.Decimal
	PenaltyApplied decimal.Decimal
	Mode           PaymentMode
	CreatedAt      time.Time
}

// Paid reports whether the installment has been settled.
func (p Payment) Paid() bool { return p.PaidAt != nil }

type PaymentMode string

const (
	PayModeCash     PaymentMode = "cash"
	PayModeTransfer PaymentMode = "transfer"
	PayModeMobile   PaymentMode = "mobile_money"
)

// =============================================================================
// REFUND - Computed withdrawal payout
// =============================================================================

type RefundID string

type RefundType string

const (
	RefundEarly RefundType = "early"
	RefundFinal RefundType = "final"
)

type RefundStatus string

const (
	RefundPending RefundStatus = "pending"
	RefundSettled RefundStatus = "settled"
)

// Refund is computed once from the payment ledger at the moment of the
// withdrawal request and is immutable after creation.
type Refund struct {
	ID            RefundID
	ContractID    ContractID
	Type          RefundType
	AmountNominal decimal.Decimal
	AmountBonus   decimal.Decimal
	Status        RefundStatus
	CreatedAt     time.Time
}

// Total is the full payout: nominal plus accrued bonus.
func (r Refund) Total() decimal.Decimal {
	return r.AmountNominal.Add(r.AmountBonus)
}

// RefundAmounts is the pure computation result, before persistence.
type RefundAmounts struct {
	AmountNominal decimal.Decimal
	AmountBonus   decimal.Decimal
}

// Total is the full payout: nominal plus accrued bonus.
func (r RefundAmounts) Total() decimal.Decimal {
	return r.AmountNominal.Add(r.AmountBonus)
}
