package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mutuelle/caisse-engine/engine"
)

// =============================================================================
// ROUNDING RULE TESTS
// =============================================================================

func TestRound_HalfRoundsUp(t *testing.T) {
	// GIVEN: A value exactly on the half boundary
	// WHEN: Rounding
	// THEN: Rounds up, not to even

	assert.Equal(t, int64(3), engine.Round(decimal.NewFromFloat(2.5)))
	assert.Equal(t, int64(4), engine.Round(decimal.NewFromFloat(3.5)))
}

func TestRound_BelowHalfRoundsDown(t *testing.T) {
	assert.Equal(t, int64(2), engine.Round(decimal.NewFromFloat(2.4999)))
	assert.Equal(t, int64(0), engine.Round(decimal.NewFromFloat(0.49)))
}

func TestRound_NegativeUsesFractionalPart(t *testing.T) {
	// GIVEN: Negative inputs
	// WHEN: Rounding
	// THEN: The rule works on f = v - floor(v), so -0.1 has f = 0.9 and
	//       rounds up to 0; -1.5 has f = 0.5 and rounds up to -1

	assert.Equal(t, int64(0), engine.Round(decimal.NewFromFloat(-0.1)))
	assert.Equal(t, int64(-1), engine.Round(decimal.NewFromFloat(-1.5)))
	assert.Equal(t, int64(-2), engine.Round(decimal.NewFromFloat(-1.6)))
}

func TestRound_IntegerIsIdentity(t *testing.T) {
	assert.Equal(t, int64(7), engine.Round(decimal.NewFromInt(7)))
	assert.Equal(t, int64(0), engine.Round(decimal.Zero))
	assert.Equal(t, int64(-3), engine.Round(decimal.NewFromInt(-3)))
}

func TestRoundDecimal_MatchesRound(t *testing.T) {
	v := decimal.NewFromFloat(123.5)
	assert.True(t, engine.RoundDecimal(v).Equal(decimal.NewFromInt(engine.Round(v))))
}
