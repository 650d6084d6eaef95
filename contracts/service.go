/*
Package contracts orchestrates the contract financial engine against the
document store.

PURPOSE:
  The engine package is pure: every function takes its inputs explicitly.
  This package is where provenance lives - it reads active settings,
  loads payment ledgers, injects the clock, calls the pure functions, and
  persists the results. No business arithmetic happens here.

STATUS PROJECTION:
  Contract.Status is a cached projection of engine.RecomputeState. Every
  operation that touches the ledger or the lifecycle markers refreshes it
  before persisting. The ledger stays the ground truth; the column exists
  so list views don't replay ledgers.

ATOMICITY:
  Multi-write operations (record payment + refresh status, activate a
  settings version, record a refund) run inside store.WithTx so partial
  failure cannot leave the projection or the one-active-settings
  invariant broken.

SEE ALSO:
  - engine/: The pure calculations
  - store/sqlite/: Production persistence
*/
package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mutuelle/caisse-engine/engine"
)

// Service exposes the contract lifecycle operations.
type Service struct {
	store engine.TxStore
	clock engine.Clock
	tiers []engine.PenaltyTier
}

// NewService creates a Service with the standard penalty tier table.
func NewService(store engine.TxStore, clock engine.Clock) *Service {
	return &Service{
		store: store,
		clock: clock,
		tiers: engine.DefaultPenaltyTiers(),
	}
}

// WithPenaltyTiers overrides the injected penalty rate configuration.
func (s *Service) WithPenaltyTiers(tiers []engine.PenaltyTier) *Service {
	s.tiers = tiers
	return s
}

// =============================================================================
// SIMULATION
// =============================================================================

// Simulate builds a projected schedule against the currently active
// settings, without persisting anything. A missing settings record still
// yields a table, flagged NoActiveSettings.
func (s *Service) Simulate(ctx context.Context, in engine.ScheduleInput) (*engine.Schedule, error) {
	settings, err := s.store.ActiveSettings(ctx, in.CaisseType)
	if err != nil {
		return nil, fmt.Errorf("load active settings: %w", err)
	}
	return engine.BuildSchedule(in, settings)
}

// SimulateWith builds a schedule against an explicit settings snapshot
// (hypothetical or historical).
func (s *Service) SimulateWith(in engine.ScheduleInput, settings *engine.BonusSettings) (*engine.Schedule, error) {
	return engine.BuildSchedule(in, settings)
}

// =============================================================================
// CONTRACT LIFECYCLE
// =============================================================================

// CreateContract validates the plan, pins the active settings version and
// persists the contract in DRAFT. Creation is blocked when no settings
// version is active for the caisse type: the member would silently earn
// zero bonus otherwise.
func (s *Service) CreateContract(ctx context.Context, caisse engine.CaisseType, member engine.MemberID, in engine.ScheduleInput) (*engine.Contract, *engine.Schedule, error) {
	settings, err := s.store.ActiveSettings(ctx, caisse)
	if err != nil {
		return nil, nil, fmt.Errorf("load active settings: %w", err)
	}
	if settings == nil {
		return nil, nil, engine.ErrNoActiveSettings
	}

	in.CaisseType = caisse
	schedule, err := engine.BuildSchedule(in, settings)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	c := engine.Contract{
		ID:                engine.ContractID(uuid.NewString()),
		CaisseType:        caisse,
		MemberID:          member,
		InstallmentAmount: in.InstallmentAmount,
		Installments:      in.Installments,
		StartDate:         in.StartDate,
		Status:            engine.StateDraft,
		SettingsID:        settings.ID,
		CreatedAt:         now,
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.store.SaveContract(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("save contract: %w", err)
	}
	return &c, schedule, nil
}

// Schedule returns the authoritative schedule of an existing contract,
// computed from the settings version pinned at creation.
func (s *Service) Schedule(ctx context.Context, id engine.ContractID) (*engine.Schedule, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	settings, err := s.settingsFor(ctx, c)
	if err != nil {
		return nil, err
	}
	return engine.BuildSchedule(engine.InputFromContract(c), settings)
}

// GetContract returns the contract with its status projection refreshed.
func (s *Service) GetContract(ctx context.Context, id engine.ContractID) (*engine.Contract, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.Payments(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = engine.RecomputeState(c, payments, s.clock.Now())
	return c, nil
}

// ContractsByMember returns the member's contracts with status
// projections refreshed from their ledgers.
func (s *Service) ContractsByMember(ctx context.Context, member engine.MemberID) ([]engine.Contract, error) {
	list, err := s.store.ListContracts(ctx, member)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range list {
		payments, err := s.store.Payments(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Status = engine.RecomputeState(&list[i], payments, now)
	}
	return list, nil
}

// Rescind records the administrative rescission of a defaulted contract.
func (s *Service) Rescind(ctx context.Context, id engine.ContractID) error {
	return s.store.WithTx(ctx, func(tx engine.Store) error {
		c, err := tx.GetContract(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		c.RescindedAt = &now
		c.Status = engine.StateRescinded
		return tx.UpdateContract(ctx, *c)
	})
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment appends one installment to the ledger, attaching the
// penalty owed for its lateness, and refreshes the status projection.
// Duplicate due indexes are rejected by the store, never overwritten.
//
// Recording is refused once the installment is past the default
// threshold: handling is administrative from there, not monetary.
func (s *Service) RecordPayment(ctx context.Context, id engine.ContractID, dueIndex int, paidAt time.Time, mode engine.PaymentMode) (*engine.Payment, error) {
	var out engine.Payment
	err := s.store.WithTx(ctx, func(tx engine.Store) error {
		c, err := tx.GetContract(ctx, id)
		if err != nil {
			return err
		}
		if dueIndex < 0 || dueIndex >= c.Installments {
			return &engine.InvalidContractError{Field: "due_index", Reason: "out of range"}
		}
		if paidAt.Before(c.StartDate) {
			return &engine.InvalidContractError{Field: "paid_at", Reason: "before contract start"}
		}

		dueAt := c.DueDate(dueIndex)
		if engine.DaysLate(dueAt, paidAt) > 12 {
			return engine.ErrContractDefaulted
		}

		penalty := engine.ComputePenalty(dueAt, paidAt, c.InstallmentAmount, s.tiers)
		paid := paidAt
		out = engine.Payment{
			ContractID:     id,
			DueIndex:       dueIndex,
			DueAt:          dueAt,
			PaidAt:         &paid,
			Amount:         c.InstallmentAmount,
			PenaltyApplied: penalty,
			Mode:           mode,
			CreatedAt:      s.clock.Now(),
		}
		if err := tx.RecordPayment(ctx, out); err != nil {
			return err
		}
		return s.refreshStatusLocked(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Payments returns the contract's ledger, ordered by due index.
func (s *Service) Payments(ctx context.Context, id engine.ContractID) ([]engine.Payment, error) {
	return s.store.Payments(ctx, id)
}

// =============================================================================
// WITHDRAWALS AND REFUNDS
// =============================================================================

// RequestEarlyWithdrawal records the member's early-exit request. The
// payout is computed later by RecordRefund; only installments paid before
// this moment will count.
func (s *Service) RequestEarlyWithdrawal(ctx context.Context, id engine.ContractID) error {
	return s.store.WithTx(ctx, func(tx engine.Store) error {
		c, err := tx.GetContract(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		c.WithdrawalRequestedAt = &now
		c.WithdrawalType = engine.RefundEarly
		return s.refreshStatusLocked(ctx, tx, c)
	})
}

// RecordRefund computes and persists the withdrawal payout. For EARLY the
// contract must carry a request marker; for FINAL it must be at maturity.
// The Refund is immutable once created.
func (s *Service) RecordRefund(ctx context.Context, id engine.ContractID, typ engine.RefundType) (*engine.Refund, error) {
	var out engine.Refund
	err := s.store.WithTx(ctx, func(tx engine.Store) error {
		c, err := tx.GetContract(ctx, id)
		if err != nil {
			return err
		}
		payments, err := tx.Payments(ctx, id)
		if err != nil {
			return err
		}
		settings, err := s.settingsFor(ctx, c)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if typ == engine.RefundFinal {
			c.WithdrawalRequestedAt = &now
			c.WithdrawalType = engine.RefundFinal
		}

		amounts, err := engine.ComputeRefund(c, payments, typ, settings)
		if err != nil {
			return err
		}

		out = engine.Refund{
			ID:            engine.RefundID(uuid.NewString()),
			ContractID:    id,
			Type:          typ,
			AmountNominal: amounts.AmountNominal,
			AmountBonus:   amounts.AmountBonus,
			Status:        engine.RefundPending,
			CreatedAt:     now,
		}
		if err := tx.SaveRefund(ctx, out); err != nil {
			return err
		}

		c.RefundRecordedAt = &now
		return s.refreshStatusLocked(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refunds returns the refunds recorded against a contract.
func (s *Service) Refunds(ctx context.Context, id engine.ContractID) ([]engine.Refund, error) {
	return s.store.RefundsByContract(ctx, id)
}

// SettleRefund marks the payout as disbursed and closes the contract.
func (s *Service) SettleRefund(ctx context.Context, refundID engine.RefundID) error {
	return s.store.WithTx(ctx, func(tx engine.Store) error {
		r, err := tx.GetRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if err := tx.MarkRefundSettled(ctx, refundID); err != nil {
			return err
		}
		c, err := tx.GetContract(ctx, r.ContractID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		c.RefundSettledAt = &now
		return s.refreshStatusLocked(ctx, tx, c)
	})
}

// =============================================================================
// SETTINGS ADMINISTRATION
// =============================================================================

// CreateSettings persists a new, inactive settings version.
func (s *Service) CreateSettings(ctx context.Context, settings engine.BonusSettings) (*engine.BonusSettings, error) {
	if settings.ID == "" {
		settings.ID = engine.SettingsID(uuid.NewString())
	}
	if !settings.CaisseType.Valid() {
		return nil, &engine.InvalidContractError{Field: "caisse_type", Reason: "unknown caisse type"}
	}
	settings.Active = false
	settings.CreatedAt = s.clock.Now()

	existing, err := s.store.ListSettings(ctx, settings.CaisseType)
	if err != nil {
		return nil, err
	}
	settings.Version = len(existing) + 1

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ActivateSettings flips the version to active and all siblings of its
// caisse type to inactive, atomically.
func (s *Service) ActivateSettings(ctx context.Context, id engine.SettingsID) error {
	return s.store.WithTx(ctx, func(tx engine.Store) error {
		return tx.ActivateSettings(ctx, id)
	})
}

// ActiveSettings returns the active version for a caisse type, nil when
// none exists.
func (s *Service) ActiveSettings(ctx context.Context, t engine.CaisseType) (*engine.BonusSettings, error) {
	return s.store.ActiveSettings(ctx, t)
}

// ListSettings returns all settings versions for a caisse type.
func (s *Service) ListSettings(ctx context.Context, t engine.CaisseType) ([]engine.BonusSettings, error) {
	return s.store.ListSettings(ctx, t)
}

// =============================================================================
// CREDIT PRODUCT
// =============================================================================

// AmortizationSchedule generates the credit repayment schedule. Pure
// passthrough - nothing is persisted unless the caller saves it.
func (s *Service) AmortizationSchedule(c engine.CreditContract) ([]engine.ScheduleItem, error) {
	return engine.BuildAmortizationSchedule(c)
}

// =============================================================================
// HELPERS
// =============================================================================

// settingsFor resolves the settings snapshot a contract computes against:
// the version pinned at creation, falling back to the active record.
func (s *Service) settingsFor(ctx context.Context, c *engine.Contract) (*engine.BonusSettings, error) {
	if c.SettingsID != "" {
		settings, err := s.store.GetSettings(ctx, c.SettingsID)
		if err == nil {
			return settings, nil
		}
		if !errors.Is(err, engine.ErrSettingsNotFound) {
			return nil, err
		}
	}
	return s.store.ActiveSettings(ctx, c.CaisseType)
}

// refreshStatusLocked recomputes the status projection from the ledger
// and persists it. Must run inside the surrounding transaction.
func (s *Service) refreshStatusLocked(ctx context.Context, tx engine.Store, c *engine.Contract) error {
	payments, err := tx.Payments(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Status = engine.RecomputeState(c, payments, s.clock.Now())
	return tx.UpdateContract(ctx, *c)
}
