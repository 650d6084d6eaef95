// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mutuelle/caisse-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	settings  map[engine.SettingsID]engine.BonusSettings
	contracts map[engine.ContractID]engine.Contract
	payments  map[engine.ContractID][]engine.Payment
	refunds   map[engine.RefundID]engine.Refund
}

func NewMemory() *Memory {
	return &Memory{
		settings:  make(map[engine.SettingsID]engine.BonusSettings),
		contracts: make(map[engine.ContractID]engine.Contract),
		payments:  make(map[engine.ContractID][]engine.Payment),
		refunds:   make(map[engine.RefundID]engine.Refund),
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) ActiveSettings(_ context.Context, t engine.CaisseType) (*engine.BonusSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.settings {
		if s.CaisseType == t && s.Active {
			out := cloneSettings(s)
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetSettings(_ context.Context, id engine.SettingsID) (*engine.BonusSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[id]
	if !ok {
		return nil, engine.ErrSettingsNotFound
	}
	out := cloneSettings(s)
	return &out, nil
}

func (m *Memory) ListSettings(_ context.Context, t engine.CaisseType) ([]engine.BonusSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.BonusSettings
	for _, s := range m.settings {
		if s.CaisseType == t {
			out = append(out, cloneSettings(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *Memory) SaveSettings(_ context.Context, s engine.BonusSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.ID] = cloneSettings(s)
	return nil
}

// ActivateSettings flips one record active and all siblings inactive in a
// single locked section (the atomic-batch requirement).
func (m *Memory) ActivateSettings(_ context.Context, id engine.SettingsID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.settings[id]
	if !ok {
		return engine.ErrSettingsNotFound
	}
	for sid, s := range m.settings {
		if s.CaisseType == target.CaisseType {
			s.Active = sid == id
			m.settings[sid] = s
		}
	}
	return nil
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (m *Memory) SaveContract(_ context.Context, c engine.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[c.ID] = c
	return nil
}

func (m *Memory) GetContract(_ context.Context, id engine.ContractID) (*engine.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, engine.ErrContractNotFound
	}
	return &c, nil
}

func (m *Memory) ListContracts(_ context.Context, member engine.MemberID) ([]engine.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Contract
	for _, c := range m.contracts {
		if c.MemberID == member {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateContract(_ context.Context, c engine.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contracts[c.ID]; !ok {
		return engine.ErrContractNotFound
	}
	m.contracts[c.ID] = c
	return nil
}

// =============================================================================
// PAYMENTS (append-only)
// =============================================================================

func (m *Memory) Payments(_ context.Context, id engine.ContractID) ([]engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.Payment, len(m.payments[id]))
	copy(out, m.payments[id])
	return out, nil
}

func (m *Memory) RecordPayment(_ context.Context, p engine.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordPaymentLocked(p)
}

func (m *Memory) recordPaymentLocked(p engine.Payment) error {
	for _, existing := range m.payments[p.ContractID] {
		if existing.DueIndex == p.DueIndex {
			return &engine.DuplicateInstallmentError{
				ContractID: p.ContractID,
				DueIndex:   p.DueIndex,
				ExistingAt: existing.CreatedAt,
			}
		}
	}

	txs := m.payments[p.ContractID]
	i := sort.Search(len(txs), func(i int) bool { return txs[i].DueIndex > p.DueIndex })
	txs = append(txs, engine.Payment{})
	copy(txs[i+1:], txs[i:])
	txs[i] = p
	m.payments[p.ContractID] = txs
	return nil
}

// =============================================================================
// REFUNDS
// =============================================================================

func (m *Memory) SaveRefund(_ context.Context, r engine.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[r.ID] = r
	return nil
}

func (m *Memory) GetRefund(_ context.Context, id engine.RefundID) (*engine.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.refunds[id]
	if !ok {
		return nil, engine.ErrRefundNotFound
	}
	return &r, nil
}

func (m *Memory) RefundsByContract(_ context.Context, id engine.ContractID) ([]engine.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Refund
	for _, r := range m.refunds {
		if r.ContractID == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) MarkRefundSettled(_ context.Context, id engine.RefundID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.refunds[id]
	if !ok {
		return engine.ErrRefundNotFound
	}
	r.Status = engine.RefundSettled
	m.refunds[id] = r
	return nil
}

// cloneSettings deep-copies the bonus table so callers can't mutate the
// stored record through the returned map.
func cloneSettings(s engine.BonusSettings) engine.BonusSettings {
	out := s
	out.BonusTable = make(map[int]decimal.Decimal, len(s.BonusTable))
	for k, v := range s.BonusTable {
		out.BonusTable[k] = v
	}
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot plus rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	snapshot := tm.snapshot()

	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		settings:  make(map[engine.SettingsID]engine.BonusSettings, len(tm.settings)),
		contracts: make(map[engine.ContractID]engine.Contract, len(tm.contracts)),
		payments:  make(map[engine.ContractID][]engine.Payment, len(tm.payments)),
		refunds:   make(map[engine.RefundID]engine.Refund, len(tm.refunds)),
	}
	for k, v := range tm.settings {
		s.settings[k] = cloneSettings(v)
	}
	for k, v := range tm.contracts {
		s.contracts[k] = v
	}
	for k, v := range tm.payments {
		s.payments[k] = append([]engine.Payment{}, v...)
	}
	for k, v := range tm.refunds {
		s.refunds[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.settings = s.settings
	tm.contracts = s.contracts
	tm.payments = s.payments
	tm.refunds = s.refunds
}

type memorySnapshot struct {
	settings  map[engine.SettingsID]engine.BonusSettings
	contracts map[engine.ContractID]engine.Contract
	payments  map[engine.ContractID][]engine.Payment
	refunds   map[engine.RefundID]engine.Refund
}
