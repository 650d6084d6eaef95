/*
Package factory provides JSON to Go settings conversion.

PURPOSE:
  Converts JSON bonus-settings definitions into engine.BonusSettings
  records. Administrators edit bonus tables as JSON; the factory
  validates the structure and produces the versioned record the engine
  consumes. The engine itself never parses JSON.

JSON SCHEMA:
  {
    "caisse_type": "standard",
    "effective_at": "2025-01-01",
    "bonus_table": {
      "3": "2",
      "4": "2.5",
      "5": "3"
    }
  }

  Table keys are 0-based month indices; values are rate percents as
  strings so precision survives the round-trip. Entries for months 0-2
  are accepted but ignored by the resolver (fixed grace window).

USAGE:
  settings, err := factory.ParseSettings(jsonStr)
  created, err := svc.CreateSettings(ctx, *settings)
  err = svc.ActivateSettings(ctx, created.ID)

SEE ALSO:
  - engine/settings.go: BonusSettings and the rate resolver
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mutuelle/caisse-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of a bonus settings record.
type SettingsJSON struct {
	ID          string            `json:"id,omitempty"`
	CaisseType  string            `json:"caisse_type"`
	EffectiveAt string            `json:"effective_at,omitempty"` // YYYY-MM-DD
	BonusTable  map[string]string `json:"bonus_table"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseSettings converts a JSON definition into an engine record. The
// record comes back inactive; activation is a separate, atomic step.
func ParseSettings(raw string) (*engine.BonusSettings, error) {
	var in SettingsJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("invalid settings JSON: %w", err)
	}
	return FromJSON(in)
}

// FromJSON converts an already-unmarshaled definition.
func FromJSON(in SettingsJSON) (*engine.BonusSettings, error) {
	t := engine.CaisseType(in.CaisseType)
	if !t.Valid() {
		return nil, fmt.Errorf("unknown caisse type %q", in.CaisseType)
	}
	if len(in.BonusTable) == 0 {
		return nil, fmt.Errorf("bonus table is empty")
	}

	table := make(map[int]decimal.Decimal, len(in.BonusTable))
	for k, v := range in.BonusTable {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid month index %q", k)
		}
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q for month %d: %w", v, idx, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("negative rate for month %d", idx)
		}
		table[idx] = rate
	}

	effectiveAt := time.Time{}
	if in.EffectiveAt != "" {
		var err error
		effectiveAt, err = time.Parse("2006-01-02", in.EffectiveAt)
		if err != nil {
			return nil, fmt.Errorf("invalid effective_at %q: %w", in.EffectiveAt, err)
		}
	}

	return &engine.BonusSettings{
		ID:          engine.SettingsID(in.ID),
		CaisseType:  t,
		BonusTable:  table,
		EffectiveAt: effectiveAt,
	}, nil
}

// ToJSON renders a settings record back to its JSON definition.
func ToJSON(s engine.BonusSettings) SettingsJSON {
	table := make(map[string]string, len(s.BonusTable))
	for idx, rate := range s.BonusTable {
		table[strconv.Itoa(idx)] = rate.String()
	}
	out := SettingsJSON{
		ID:         string(s.ID),
		CaisseType: string(s.CaisseType),
		BonusTable: table,
	}
	if !s.EffectiveAt.IsZero() {
		out.EffectiveAt = s.EffectiveAt.Format("2006-01-02")
	}
	return out
}

// =============================================================================
// PRESETS - Canned bonus tables for bootstrap and demos
// =============================================================================

// StandardBonusJSON builds a linear bonus table: zero through the grace
// window, then baseRate from month 3 growing by stepRate each month up to
// durationMonths. Rates are percent.
func StandardBonusJSON(caisse engine.CaisseType, durationMonths int, baseRate, stepRate decimal.Decimal) string {
	table := make(map[string]string)
	rate := baseRate
	for i := 3; i < durationMonths; i++ {
		table[strconv.Itoa(i)] = rate.String()
		rate = rate.Add(stepRate)
	}
	out, _ := json.Marshal(SettingsJSON{
		CaisseType: string(caisse),
		BonusTable: table,
	})
	return string(out)
}

// TableMonths returns the configured month indices in ascending order.
// Display helper for settings admin views.
func TableMonths(s engine.BonusSettings) []int {
	months := make([]int, 0, len(s.BonusTable))
	for idx := range s.BonusTable {
		months = append(months, idx)
	}
	sort.Ints(months)
	return months
}
