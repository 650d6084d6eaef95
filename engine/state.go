/*
state.go - Contract lifecycle state machine

PURPOSE:
  Maps a contract's payment history and an injected "today" into its
  lifecycle state. The state is DERIVED: the stored status column is a
  cached projection, and RecomputeState is the single authority.

DETERMINISM INVARIANT:
  RecomputeState is a pure function of (contract, payments, today).
  Re-running it against the same ledger always yields the same state -
  no hidden clock reads, no randomness.

TRANSITION MAP (evaluated against the current due installment, i.e. the
earliest unpaid installment whose due date has passed):
  DRAFT            -> ACTIVE              first payment recorded
  ACTIVE/LATE_*    -> ACTIVE              current installment settled
  ACTIVE           -> LATE_NO_PENALTY     1-3 days past due, unpaid
  LATE_NO_PENALTY  -> LATE_WITH_PENALTY   4-12 days past due, unpaid
  LATE_WITH_PENALTY-> DEFAULTED_AFTER_J12 >12 days past due, unpaid
  (member action)  -> EARLY_WITHDRAW_REQUESTED -> EARLY_REFUND_PENDING -> CLOSED
  (all paid)       -> FINAL_REFUND_PENDING -> CLOSED
  (admin action)   -> RESCINDED

  Member and admin actions are recorded as markers on the contract
  (WithdrawalRequestedAt, RefundRecordedAt, RefundSettledAt, RescindedAt)
  so the refund branch stays a function of the same three inputs.
*/
package engine

import "time"

// =============================================================================
// STATES
// =============================================================================

type State string

const (
	StateDraft                  State = "draft"
	StateActive                 State = "active"
	StateLateNoPenalty          State = "late_no_penalty"
	StateLateWithPenalty        State = "late_with_penalty"
	StateDefaultedAfterJ12      State = "defaulted_after_j12"
	StateEarlyWithdrawRequested State = "early_withdraw_requested"
	StateEarlyRefundPending     State = "early_refund_pending"
	StateFinalRefundPending     State = "final_refund_pending"
	StateRescinded              State = "rescinded"
	StateClosed                 State = "closed"
)

// Terminal reports whether no further engine transition applies.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateRescinded
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// RecomputeState derives the contract state from the payment ledger and
// the injected evaluation date. Call it after every ledger mutation and
// persist the result as the cached status projection.
func RecomputeState(c *Contract, payments []Payment, today time.Time) State {
	// Administrative rescission wins over everything.
	if c.RescindedAt != nil {
		return StateRescinded
	}

	// Refund branch: member-initiated early exit or settled payout.
	if c.RefundSettledAt != nil {
		return StateClosed
	}
	if c.WithdrawalRequestedAt != nil && c.WithdrawalType == RefundEarly {
		if c.RefundRecordedAt != nil {
			return StateEarlyRefundPending
		}
		return StateEarlyWithdrawRequested
	}

	paid := paidIndexes(payments)
	if len(paid) == 0 {
		return StateDraft
	}

	// Natural maturity: every installment settled.
	if allPaid(c, paid) {
		return StateFinalRefundPending
	}

	// Current due installment: earliest unpaid index whose due date has
	// passed.
	due, ok := currentDueInstallment(c, paid, today)
	if !ok {
		return StateActive
	}

	switch late := DaysLate(due, today); {
	case late <= penaltyGraceDays:
		return StateLateNoPenalty
	case late <= penaltyDefaultDays:
		return StateLateWithPenalty
	default:
		return StateDefaultedAfterJ12
	}
}

func paidIndexes(payments []Payment) map[int]bool {
	paid := make(map[int]bool, len(payments))
	for _, p := range payments {
		if p.Paid() {
			paid[p.DueIndex] = true
		}
	}
	return paid
}

func allPaid(c *Contract, paid map[int]bool) bool {
	for i := 0; i < c.Installments; i++ {
		if !paid[i] {
			return false
		}
	}
	return true
}

// currentDueInstallment returns the due date of the earliest unpaid
// installment whose due date is strictly before today, if any.
func currentDueInstallment(c *Contract, paid map[int]bool, today time.Time) (time.Time, bool) {
	day := truncateDay(today)
	for i := 0; i < c.Installments; i++ {
		if paid[i] {
			continue
		}
		due := truncateDay(c.DueDate(i))
		if due.Before(day) {
			return due, true
		}
		// Installments are due in order; the first unpaid one decides.
		return time.Time{}, false
	}
	return time.Time{}, false
}
