package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutuelle/caisse-engine/engine"
	"github.com/mutuelle/caisse-engine/factory"
)

// =============================================================================
// PARSING TESTS
// =============================================================================

func TestParseSettings_ValidDefinition(t *testing.T) {
	raw := `{
		"caisse_type": "standard",
		"effective_at": "2025-01-01",
		"bonus_table": {
			"3": "2",
			"4": "2.5",
			"5": "3"
		}
	}`

	s, err := factory.ParseSettings(raw)
	require.NoError(t, err)

	assert.Equal(t, engine.CaisseStandard, s.CaisseType)
	assert.True(t, s.BonusTable[4].Equal(decimal.NewFromFloat(2.5)))
	assert.Equal(t, 2025, s.EffectiveAt.Year())
	assert.False(t, s.Active, "parsed settings come back inactive")
}

func TestParseSettings_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed JSON", `{`},
		{"unknown caisse type", `{"caisse_type": "pyramide", "bonus_table": {"3": "2"}}`},
		{"empty table", `{"caisse_type": "standard", "bonus_table": {}}`},
		{"non-numeric month", `{"caisse_type": "standard", "bonus_table": {"abc": "2"}}`},
		{"negative month", `{"caisse_type": "standard", "bonus_table": {"-1": "2"}}`},
		{"non-decimal rate", `{"caisse_type": "standard", "bonus_table": {"3": "two"}}`},
		{"negative rate", `{"caisse_type": "standard", "bonus_table": {"3": "-2"}}`},
		{"bad effective date", `{"caisse_type": "standard", "effective_at": "01/01/2025", "bonus_table": {"3": "2"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ParseSettings(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	raw := `{"caisse_type": "journaliere", "bonus_table": {"3": "1.5", "10": "4"}}`
	s, err := factory.ParseSettings(raw)
	require.NoError(t, err)

	out := factory.ToJSON(*s)
	assert.Equal(t, "journaliere", out.CaisseType)
	assert.Equal(t, "1.5", out.BonusTable["3"])
	assert.Equal(t, "4", out.BonusTable["10"])
}

// =============================================================================
// PRESET TESTS
// =============================================================================

func TestStandardBonusJSON_SkipsGraceWindow(t *testing.T) {
	// GIVEN: A 12-month linear preset starting at 2% stepping by 0.5%
	// WHEN: Parsing the generated JSON
	// THEN: Table covers months 3-11 only; grace window has no entries

	raw := factory.StandardBonusJSON(engine.CaisseStandard, 12,
		decimal.NewFromInt(2), decimal.NewFromFloat(0.5))

	s, err := factory.ParseSettings(raw)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok := s.BonusTable[i]
		assert.False(t, ok, "grace month %d must not be configured", i)
	}
	assert.True(t, s.BonusTable[3].Equal(decimal.NewFromInt(2)))
	assert.True(t, s.BonusTable[4].Equal(decimal.NewFromFloat(2.5)))
	assert.True(t, s.BonusTable[11].Equal(decimal.NewFromInt(6)))
}

func TestTableMonths_SortedAscending(t *testing.T) {
	s := engine.BonusSettings{
		BonusTable: map[int]decimal.Decimal{
			10: decimal.NewFromInt(4),
			3:  decimal.NewFromInt(1),
			7:  decimal.NewFromInt(2),
		},
	}
	assert.Equal(t, []int{3, 7, 10}, factory.TableMonths(s))
}
