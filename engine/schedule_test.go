package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutuelle/caisse-engine/engine"
)

func twelveMonthInput() engine.ScheduleInput {
	return engine.ScheduleInput{
		CaisseType:        engine.CaisseStandard,
		InstallmentAmount: decimal.NewFromInt(10000),
		Installments:      12,
		StartDate:         day(2025, time.January, 1),
	}
}

// =============================================================================
// SCHEDULE BUILDER TESTS
// =============================================================================

func TestBuildSchedule_RowPerInstallment(t *testing.T) {
	// GIVEN: A 12-month plan of 10000 with a flat 2% table from month 3
	// WHEN: Building the schedule
	// THEN: 12 rows, monthly due dates, grace rows earn nothing

	settings := linearSettings(engine.CaisseStandard, 12, 2)
	s, err := engine.BuildSchedule(twelveMonthInput(), settings)
	require.NoError(t, err)
	require.Len(t, s.Rows, 12)

	assert.Equal(t, day(2025, time.January, 1), s.Rows[0].DueAt)
	assert.Equal(t, day(2025, time.February, 1), s.Rows[1].DueAt)
	assert.Equal(t, day(2025, time.December, 1), s.Rows[11].DueAt)

	for i := 0; i < 3; i++ {
		assert.True(t, s.Rows[i].BonusAmount.IsZero(), "row %d is in the grace window", i)
	}
	assert.True(t, s.Rows[3].BonusAmount.Equal(decimal.NewFromInt(200)))
	assert.False(t, s.NoActiveSettings)
}

func TestBuildSchedule_Totals(t *testing.T) {
	// total = 12 * 10000; bonus = 9 months * 200
	settings := linearSettings(engine.CaisseStandard, 12, 2)
	s, err := engine.BuildSchedule(twelveMonthInput(), settings)
	require.NoError(t, err)

	assert.True(t, s.TotalAmount.Equal(decimal.NewFromInt(120000)))
	assert.True(t, s.TotalBonus.Equal(decimal.NewFromInt(1800)))
}

func TestBuildSchedule_BonusLabels(t *testing.T) {
	settings := linearSettings(engine.CaisseStandard, 12, 2)
	s, err := engine.BuildSchedule(twelveMonthInput(), settings)
	require.NoError(t, err)

	assert.Equal(t, "—", s.Rows[0].BonusLabel)
	assert.Equal(t, "—", s.Rows[2].BonusLabel)
	assert.Equal(t, "M4", s.Rows[3].BonusLabel)
	assert.Equal(t, "M12", s.Rows[11].BonusLabel)
}

func TestBuildSchedule_NilSettingsFlagsButStillRenders(t *testing.T) {
	// GIVEN: No active settings
	// WHEN: Building a schedule that extends past the grace window
	// THEN: Full zero-bonus table with NoActiveSettings=true

	s, err := engine.BuildSchedule(twelveMonthInput(), nil)
	require.NoError(t, err)

	assert.True(t, s.NoActiveSettings)
	require.Len(t, s.Rows, 12)
	assert.True(t, s.TotalBonus.IsZero())
	assert.True(t, s.TotalAmount.Equal(decimal.NewFromInt(120000)))
}

func TestBuildSchedule_GraceOnlyPlanNeedsNoSettings(t *testing.T) {
	// A 3-month plan never leaves the grace window; missing settings is
	// not a configuration gap for it.
	in := twelveMonthInput()
	in.Installments = 3

	s, err := engine.BuildSchedule(in, nil)
	require.NoError(t, err)
	assert.False(t, s.NoActiveSettings)
}

func TestBuildSchedule_DailyCaisseDailyDueDates(t *testing.T) {
	in := twelveMonthInput()
	in.CaisseType = engine.CaisseJournaliere
	in.Installments = 30

	s, err := engine.BuildSchedule(in, nil)
	require.NoError(t, err)
	require.Len(t, s.Rows, 30)
	assert.Equal(t, day(2025, time.January, 2), s.Rows[1].DueAt)
	assert.Equal(t, day(2025, time.January, 30), s.Rows[29].DueAt)
}

func TestBuildSchedule_MonthlyUsesCalendarArithmetic(t *testing.T) {
	// GIVEN: A plan starting Jan 31
	// WHEN: Building the schedule
	// THEN: Due dates follow Go's calendar normalization, not 30-day hops

	in := twelveMonthInput()
	in.StartDate = day(2025, time.January, 31)

	s, err := engine.BuildSchedule(in, nil)
	require.NoError(t, err)
	// Jan 31 + 1 month normalizes to Mar 3 (Feb has 28 days in 2025).
	assert.Equal(t, day(2025, time.March, 3), s.Rows[1].DueAt)
}

func TestBuildSchedule_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*engine.ScheduleInput)
	}{
		{"zero amount", func(in *engine.ScheduleInput) { in.InstallmentAmount = decimal.Zero }},
		{"negative amount", func(in *engine.ScheduleInput) { in.InstallmentAmount = decimal.NewFromInt(-5) }},
		{"zero installments", func(in *engine.ScheduleInput) { in.Installments = 0 }},
		{"unknown caisse type", func(in *engine.ScheduleInput) { in.CaisseType = "pyramide" }},
		{"missing start date", func(in *engine.ScheduleInput) { in.StartDate = time.Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := twelveMonthInput()
			tc.mutate(&in)

			_, err := engine.BuildSchedule(in, nil)
			assert.ErrorIs(t, err, engine.ErrInvalidContract)
		})
	}
}
