package risk

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedPip struct {
	value decimal.Decimal
}

func (p fixedPip) PipValue(symbol string, lots decimal.Decimal) decimal.Decimal {
	return p.value
}

// tieredPip models an instrument whose pip value jumps once the position
// grows beyond the minimum lot, forcing the refinement pass to matter.
type tieredPip struct {
	mu    sync.Mutex
	calls []decimal.Decimal
}

func (p *tieredPip) PipValue(symbol string, lots decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	p.calls = append(p.calls, lots)
	p.mu.Unlock()
	if lots.LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		return decimal.NewFromInt(10)
	}
	return decimal.NewFromInt(20)
}

func newSizer(t *testing.T, pips PipValuer) *PositionSizer {
	t.Helper()
	return NewPositionSizer(DefaultSizerConfig(), pips, zaptest.NewLogger(t))
}

func TestCalculatePositionSize(t *testing.T) {
	s := newSizer(t, fixedPip{value: decimal.NewFromInt(10)})

	// 1% of 10000 = 100 at risk; 100 / (50 * 10) = 0.2 lots.
	lots, err := s.CalculatePositionSize(
		decimal.NewFromInt(10000), decimal.NewFromInt(1), decimal.NewFromInt(50), "EURUSD")
	require.NoError(t, err)
	assert.True(t, lots.Equal(decimal.NewFromFloat(0.2)), "got %s", lots)
}

func TestCalculatePositionSizeInvalidInput(t *testing.T) {
	s := newSizer(t, fixedPip{value: decimal.NewFromInt(10)})

	cases := []struct {
		name               string
		equity, risk, stop decimal.Decimal
	}{
		{"zero equity", decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(50)},
		{"negative equity", decimal.NewFromInt(-100), decimal.NewFromInt(1), decimal.NewFromInt(50)},
		{"zero risk pct", decimal.NewFromInt(10000), decimal.Zero, decimal.NewFromInt(50)},
		{"risk pct above 100", decimal.NewFromInt(10000), decimal.NewFromInt(101), decimal.NewFromInt(50)},
		{"zero stop distance", decimal.NewFromInt(10000), decimal.NewFromInt(1), decimal.Zero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CalculatePositionSize(tc.equity, tc.risk, tc.stop, "EURUSD")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}

	// risk_pct == 100 is the inclusive upper bound and must not error.
	_, err := s.CalculatePositionSize(
		decimal.NewFromInt(10000), decimal.NewFromInt(100), decimal.NewFromInt(50), "EURUSD")
	require.NoError(t, err)
}

func TestCalculatePositionSizeUnknownSymbol(t *testing.T) {
	s := newSizer(t, fixedPip{value: decimal.Zero})

	lots, err := s.CalculatePositionSize(
		decimal.NewFromInt(10000), decimal.NewFromInt(1), decimal.NewFromInt(50), "NOSUCH")
	require.NoError(t, err, "unknown symbol must fail closed, not abort the cycle")
	assert.True(t, lots.Equal(DefaultSizerConfig().MinLots), "got %s", lots)
}

func TestCalculatePositionSizeClamps(t *testing.T) {
	s := newSizer(t, fixedPip{value: decimal.NewFromInt(10)})

	// 100% of 1e7 over a 1-pip stop blows past MaxLots.
	lots, err := s.CalculatePositionSize(
		decimal.NewFromInt(10000000), decimal.NewFromInt(100), decimal.NewFromInt(1), "EURUSD")
	require.NoError(t, err)
	assert.True(t, lots.Equal(DefaultSizerConfig().MaxLots), "got %s", lots)

	// Tiny risk lands below MinLots and clamps up.
	lots, err = s.CalculatePositionSize(
		decimal.NewFromInt(100), decimal.NewFromFloat(0.01), decimal.NewFromInt(500), "EURUSD")
	require.NoError(t, err)
	assert.True(t, lots.Equal(DefaultSizerConfig().MinLots), "got %s", lots)
}

func TestCalculatePositionSizeRoundsHalfToEven(t *testing.T) {
	s := newSizer(t, fixedPip{value: decimal.NewFromInt(10)})

	// 0.15% of 10000 = 15; 15/(100*10) = 0.015 -> 1.5 steps -> 0.02 (even).
	lots, err := s.CalculatePositionSize(
		decimal.NewFromInt(10000), decimal.NewFromFloat(0.15), decimal.NewFromInt(100), "EURUSD")
	require.NoError(t, err)
	assert.True(t, lots.Equal(decimal.NewFromFloat(0.02)), "1.5 steps should round to even: got %s", lots)

	// 0.25% of 10000 = 25; 25/(100*10) = 0.025 -> 2.5 steps -> 0.02 (even).
	lots, err = s.CalculatePositionSize(
		decimal.NewFromInt(10000), decimal.NewFromFloat(0.25), decimal.NewFromInt(100), "EURUSD")
	require.NoError(t, err)
	assert.True(t, lots.Equal(decimal.NewFromFloat(0.02)), "2.5 steps should round to even: got %s", lots)
}

func TestCalculatePositionSizeRefinesPipValue(t *testing.T) {
	pips := &tieredPip{}
	s := newSizer(t, pips)

	// First pass: 1000/(50*10) = 2 lots. The tier jump re-prices the pip at
	// 20, so the refined size halves to 1 lot.
	lots, err := s.CalculatePositionSize(
		decimal.NewFromInt(100000), decimal.NewFromInt(1), decimal.NewFromInt(50), "XAGUSD")
	require.NoError(t, err)
	assert.True(t, lots.Equal(decimal.NewFromInt(1)), "got %s", lots)
	require.Len(t, pips.calls, 2, "pip value must be derived once per pass")
	assert.True(t, pips.calls[0].Equal(DefaultSizerConfig().MinLots))
	assert.True(t, pips.calls[1].Equal(decimal.NewFromInt(2)))
}

func TestValidatePositionSize(t *testing.T) {
	s := newSizer(t, fixedPip{value: decimal.NewFromInt(10)})

	assert.True(t, s.ValidatePositionSize(decimal.NewFromFloat(0.01), "EURUSD"))
	assert.True(t, s.ValidatePositionSize(decimal.NewFromInt(100), "EURUSD"))
	assert.False(t, s.ValidatePositionSize(decimal.NewFromFloat(0.005), "EURUSD"))
	assert.False(t, s.ValidatePositionSize(decimal.NewFromInt(101), "EURUSD"))
}

func TestStaticPipTable(t *testing.T) {
	table := DefaultPipTable()
	assert.True(t, table.PipValue("EURUSD", decimal.NewFromInt(1)).Equal(decimal.NewFromInt(10)))
	assert.True(t, table.PipValue("NOSUCH", decimal.NewFromInt(1)).IsZero())

	table.Set("BTCUSD", decimal.NewFromInt(1))
	assert.True(t, table.PipValue("BTCUSD", decimal.NewFromInt(1)).Equal(decimal.NewFromInt(1)))
}
