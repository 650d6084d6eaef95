/*
errors.go - Centralized error types for the contract engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; structured types carry context.

ERROR CATEGORIES:
  1. Configuration - missing active settings (non-fatal, flag-like)
  2. Validation    - invalid contract parameters (fatal to the operation)
  3. Ledger        - duplicate installment writes (audit integrity)
  4. Amortization  - schedules that would not terminate

USAGE:
  if errors.Is(err, engine.ErrDuplicateInstallment) {
      // reject, never overwrite
  }
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoActiveSettings is returned when no active bonus settings exist
	// for a caisse type. Simulations surface this as a flag and still
	// render zero-bonus rows; contract creation treats it as blocking.
	ErrNoActiveSettings = errors.New("no active bonus settings for caisse type")

	// ErrInvalidContract is returned for non-positive amounts or durations.
	// The schedule cannot be built.
	ErrInvalidContract = errors.New("invalid contract parameters")

	// ErrDuplicateInstallment is returned when a payment already exists for
	// a due index. The ledger never silently overwrites.
	ErrDuplicateInstallment = errors.New("installment already recorded")

	// ErrUnboundedAmortization is returned when the amortization loop
	// exhausts maxDuration with balance remaining. The caller must treat
	// this as a reportable condition, not a silent truncation.
	ErrUnboundedAmortization = errors.New("amortization does not terminate within max duration")

	// ErrRefundNotDue is returned for a FINAL refund requested before all
	// installments are paid.
	ErrRefundNotDue = errors.New("final refund requires all installments paid")

	// ErrContractDefaulted is returned when recording a payment more than
	// 12 days past due. The contract has defaulted; handling is
	// administrative (rescission), not monetary.
	ErrContractDefaulted = errors.New("installment past default threshold")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrSettingsNotFound is returned when a referenced settings record doesn't exist.
	ErrSettingsNotFound = errors.New("settings record not found")

	// ErrRefundNotFound is returned when a referenced refund doesn't exist.
	ErrRefundNotFound = errors.New("refund not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidContractError reports which parameter failed validation.
type InvalidContractError struct {
	Field  string
	Reason string
}

func (e *InvalidContractError) Error() string {
	return fmt.Sprintf("invalid contract: %s %s", e.Field, e.Reason)
}

func (e *InvalidContractError) Unwrap() error { return ErrInvalidContract }

// DuplicateInstallmentError reports which installment was duplicated.
type DuplicateInstallmentError struct {
	ContractID ContractID
	DueIndex   int
	ExistingAt time.Time
}

func (e *DuplicateInstallmentError) Error() string {
	return fmt.Sprintf("installment %d already recorded for contract %s",
		e.DueIndex, e.ContractID)
}

func (e *DuplicateInstallmentError) Unwrap() error { return ErrDuplicateInstallment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidContract) ||
		errors.Is(err, ErrDuplicateInstallment) ||
		errors.Is(err, ErrRefundNotDue) ||
		errors.Is(err, ErrContractDefaulted)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrSettingsNotFound) ||
		errors.Is(err, ErrRefundNotFound)
}
