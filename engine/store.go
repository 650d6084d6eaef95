/*
store.go - Persistence and clock boundary for the engine

PURPOSE:
  Defines the interfaces between the pure engine and the surrounding
  system (document store, ledger, clock). The engine itself never does
  I/O; the contracts service composes these with the pure functions.

APPEND-ONLY LEDGER CONTRACT:
  PaymentStore has no update or delete for payments. RecordPayment is
  called once per installment and rejects duplicate due indexes
  (ErrDuplicateInstallment). Corrections are new records.

SETTINGS ACTIVATION ATOMICITY:
  ActivateSettings must flip exactly one record to active and all
  siblings of the same caisse type to inactive as a single atomic batch.
  N independent writes would leave zero or multiple active versions on
  partial failure, violating the one-active-per-type invariant.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go: Production SQLite
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// CLOCK - Injected so state evaluation is deterministic and testable
// =============================================================================

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, truncated to UTC day granularity.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return truncateDay(time.Now().UTC())
}

// FixedClock always returns the same instant. For tests and replay.
type FixedClock struct{ At time.Time }

func (c FixedClock) Now() time.Time { return c.At }

// =============================================================================
// SETTINGS STORE
// =============================================================================

// SettingsStore reads and activates versioned bonus settings.
type SettingsStore interface {
	// ActiveSettings returns the single active record for a caisse type,
	// or nil when none exists ("no configuration - block or warn").
	ActiveSettings(ctx context.Context, t CaisseType) (*BonusSettings, error)

	// GetSettings returns a settings record by id, active or not.
	GetSettings(ctx context.Context, id SettingsID) (*BonusSettings, error)

	// ListSettings returns all versions for a caisse type, newest first.
	ListSettings(ctx context.Context, t CaisseType) ([]BonusSettings, error)

	// SaveSettings persists a new, inactive settings version.
	SaveSettings(ctx context.Context, s BonusSettings) error

	// ActivateSettings atomically flips the record to active and every
	// sibling of the same caisse type to inactive.
	ActivateSettings(ctx context.Context, id SettingsID) error
}

// =============================================================================
// CONTRACT + PAYMENT STORES
// =============================================================================

// ContractStore persists contracts and their cached status projection.
type ContractStore interface {
	SaveContract(ctx context.Context, c Contract) error
	GetContract(ctx context.Context, id ContractID) (*Contract, error)
	ListContracts(ctx context.Context, member MemberID) ([]Contract, error)

	// UpdateContract replaces the mutable projection fields (status and
	// lifecycle markers). StartDate and amounts are immutable.
	UpdateContract(ctx context.Context, c Contract) error
}

// PaymentStore is the append-only installment ledger.
type PaymentStore interface {
	// Payments returns the ledger for a contract, ordered by due index.
	Payments(ctx context.Context, id ContractID) ([]Payment, error)

	// RecordPayment appends one installment. Rejects a duplicate due
	// index for the same contract with ErrDuplicateInstallment.
	RecordPayment(ctx context.Context, p Payment) error
}

// =============================================================================
// REFUND STORE
// =============================================================================

// RefundStore persists computed refunds. Refunds are immutable after
// creation except for the pending -> settled status flip.
type RefundStore interface {
	SaveRefund(ctx context.Context, r Refund) error
	GetRefund(ctx context.Context, id RefundID) (*Refund, error)
	RefundsByContract(ctx context.Context, id ContractID) ([]Refund, error)
	MarkRefundSettled(ctx context.Context, id RefundID) error
}

// =============================================================================
// COMPOSITE STORE
// =============================================================================

// Store bundles every boundary the contracts service needs.
type Store interface {
	SettingsStore
	ContractStore
	PaymentStore
	RefundStore
}

// TxStore wraps Store with transaction support for multi-write
// operations that must be atomic (settings activation, payment plus
// status projection).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
