/*
settings.go - Versioned bonus settings and rate resolution

PURPOSE:
  BonusSettings is the dated, versioned bonus table for a caisse type.
  Exactly one version is active per type at any time; activating a version
  deactivates all siblings atomically (see SettingsStore).

  The resolver takes settings as an explicit parameter, never an ambient
  read, so simulations can run against hypothetical or historical
  snapshots and unit tests need no database.

GRACE WINDOW:
  Months 0-2 (M1-M3) never earn bonus. This is fixed policy, hard-coded
  here on purpose - it is not part of the configurable table.

SEE ALSO:
  - schedule.go: Consumes the resolver per installment
  - factory/: JSON representation of settings records
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BONUS SETTINGS - Versioned, immutable once superseded
// =============================================================================

type SettingsID string

type BonusSettings struct {
	ID         SettingsID
	CaisseType CaisseType

	// BonusTable maps 0-based month index to a rate percent. Indices 0-2
	// are ignored by the resolver (grace window).
	BonusTable map[int]decimal.Decimal

	// Active: at most one active record per caisse type at any time.
	Active      bool
	Version     int
	EffectiveAt time.Time
	CreatedAt   time.Time
}

// RateFor returns the configured rate for a month index, if present.
func (s *BonusSettings) RateFor(monthIndex int) (decimal.Decimal, bool) {
	if s == nil {
		return decimal.Zero, false
	}
	rate, ok := s.BonusTable[monthIndex]
	return rate, ok
}

// bonusGraceMonths is the fixed no-bonus window at the start of every plan.
const bonusGraceMonths = 3

// =============================================================================
// BONUS RATE RESOLVER
// =============================================================================

// ResolveBonusRate returns the bonus rate percent applicable to the given
// installment index.
//
// Months 0-2 return zero regardless of settings, with configured=true:
// the zero is policy, not a configuration gap.
//
// From month 3 onward the rate comes from the settings table. A nil
// settings record or a missing table entry returns zero with
// configured=false so callers can surface a configuration warning instead
// of silently understating the bonus.
func ResolveBonusRate(monthIndex int, settings *BonusSettings) (rate decimal.Decimal, configured bool) {
	if monthIndex < bonusGraceMonths {
		return decimal.Zero, true
	}
	rate, ok := settings.RateFor(monthIndex)
	if !ok {
		return decimal.Zero, false
	}
	return rate, true
}

// BonusAmount computes the rounded bonus credited for one installment.
func BonusAmount(installmentAmount, ratePercent decimal.Decimal) decimal.Decimal {
	return RoundDecimal(installmentAmount.Mul(ratePercent).Div(decimal.NewFromInt(100)))
}
