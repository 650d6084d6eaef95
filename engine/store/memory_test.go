package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutuelle/caisse-engine/engine"
	"github.com/mutuelle/caisse-engine/engine/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func settingsV(id engine.SettingsID, t engine.CaisseType, version int, active bool) engine.BonusSettings {
	return engine.BonusSettings{
		ID:         id,
		CaisseType: t,
		BonusTable: map[int]decimal.Decimal{3: decimal.NewFromInt(2)},
		Active:     active,
		Version:    version,
	}
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestMemory_ActiveSettings_NoneIsNilNotError(t *testing.T) {
	m := store.NewMemory()
	got, err := m.ActiveSettings(context.Background(), engine.CaisseStandard)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_ActivateSettings_DeactivatesSiblings(t *testing.T) {
	// GIVEN: Two versions for the same caisse type, v1 active
	// WHEN: Activating v2
	// THEN: v2 is the single active record

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveSettings(ctx, settingsV("s-1", engine.CaisseStandard, 1, true)))
	require.NoError(t, m.SaveSettings(ctx, settingsV("s-2", engine.CaisseStandard, 2, false)))

	require.NoError(t, m.ActivateSettings(ctx, "s-2"))

	active, err := m.ActiveSettings(ctx, engine.CaisseStandard)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, engine.SettingsID("s-2"), active.ID)

	v1, err := m.GetSettings(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, v1.Active)
}

func TestMemory_ActivateSettings_LeavesOtherTypesAlone(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveSettings(ctx, settingsV("std-1", engine.CaisseStandard, 1, true)))
	require.NoError(t, m.SaveSettings(ctx, settingsV("lib-1", engine.CaisseLibre, 1, true)))
	require.NoError(t, m.SaveSettings(ctx, settingsV("lib-2", engine.CaisseLibre, 2, false)))

	require.NoError(t, m.ActivateSettings(ctx, "lib-2"))

	std, err := m.ActiveSettings(ctx, engine.CaisseStandard)
	require.NoError(t, err)
	require.NotNil(t, std)
	assert.Equal(t, engine.SettingsID("std-1"), std.ID)
}

func TestMemory_ListSettings_NewestFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveSettings(ctx, settingsV("s-1", engine.CaisseStandard, 1, false)))
	require.NoError(t, m.SaveSettings(ctx, settingsV("s-2", engine.CaisseStandard, 2, true)))

	list, err := m.ListSettings(ctx, engine.CaisseStandard)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
}

func TestMemory_GetSettings_CallerCannotMutateStored(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveSettings(ctx, settingsV("s-1", engine.CaisseStandard, 1, true)))

	got, err := m.GetSettings(ctx, "s-1")
	require.NoError(t, err)
	got.BonusTable[3] = decimal.NewFromInt(99)

	again, err := m.GetSettings(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, again.BonusTable[3].Equal(decimal.NewFromInt(2)))
}

// =============================================================================
// PAYMENT LEDGER TESTS
// =============================================================================

func TestMemory_RecordPayment_RejectsDuplicateDueIndex(t *testing.T) {
	// GIVEN: Installment 2 already recorded
	// WHEN: Recording installment 2 again
	// THEN: DuplicateInstallmentError; the ledger never overwrites

	m := store.NewMemory()
	ctx := context.Background()
	paid := day(2025, time.March, 1)

	p := engine.Payment{
		ContractID: "c-1",
		DueIndex:   2,
		DueAt:      day(2025, time.March, 1),
		PaidAt:     &paid,
		Amount:     decimal.NewFromInt(10000),
	}
	require.NoError(t, m.RecordPayment(ctx, p))

	err := m.RecordPayment(ctx, p)
	assert.ErrorIs(t, err, engine.ErrDuplicateInstallment)

	var dup *engine.DuplicateInstallmentError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, 2, dup.DueIndex)
}

func TestMemory_Payments_OrderedByDueIndex(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	for _, idx := range []int{3, 0, 2, 1} {
		paid := day(2025, time.January, 1+idx)
		require.NoError(t, m.RecordPayment(ctx, engine.Payment{
			ContractID: "c-1",
			DueIndex:   idx,
			PaidAt:     &paid,
			Amount:     decimal.NewFromInt(100),
		}))
	}

	payments, err := m.Payments(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, payments, 4)
	for i, p := range payments {
		assert.Equal(t, i, p.DueIndex)
	}
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a payment then fails
	// WHEN: WithTx returns the error
	// THEN: The write is rolled back

	tm := store.NewTxMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := tm.WithTx(ctx, func(tx engine.Store) error {
		paid := day(2025, time.January, 1)
		if err := tx.RecordPayment(ctx, engine.Payment{
			ContractID: "c-1",
			DueIndex:   0,
			PaidAt:     &paid,
			Amount:     decimal.NewFromInt(100),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	payments, err := tm.Payments(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	tm := store.NewTxMemory()
	ctx := context.Background()

	err := tm.WithTx(ctx, func(tx engine.Store) error {
		return tx.SaveContract(ctx, engine.Contract{
			ID:                "c-1",
			CaisseType:        engine.CaisseStandard,
			MemberID:          "m-1",
			InstallmentAmount: decimal.NewFromInt(100),
			Installments:      12,
			StartDate:         day(2025, time.January, 1),
		})
	})
	require.NoError(t, err)

	c, err := tm.GetContract(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, engine.MemberID("m-1"), c.MemberID)
}

// =============================================================================
// REFUND TESTS
// =============================================================================

func TestMemory_MarkRefundSettled(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveRefund(ctx, engine.Refund{
		ID:         "r-1",
		ContractID: "c-1",
		Type:       engine.RefundFinal,
		Status:     engine.RefundPending,
	}))
	require.NoError(t, m.MarkRefundSettled(ctx, "r-1"))

	r, err := m.GetRefund(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RefundSettled, r.Status)
}

func TestMemory_NotFoundErrors(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	_, err := m.GetContract(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrContractNotFound)

	_, err = m.GetSettings(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrSettingsNotFound)

	_, err = m.GetRefund(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrRefundNotFound)

	err = m.ActivateSettings(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrSettingsNotFound)
}
