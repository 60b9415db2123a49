// Package risk implements the safety core of the trading controller: the
// position sizer, the kill switch and the pre-trade admission orchestration.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// PipValuer supplies per-pip monetary value for an instrument. Pip value may
// depend on lot size for some instruments, which is why sizing re-derives it.
type PipValuer interface {
	PipValue(symbol string, lots decimal.Decimal) decimal.Decimal
}

// SizerConfig holds externally supplied instrument limits.
type SizerConfig struct {
	MinLots decimal.Decimal
	MaxLots decimal.Decimal
	LotStep decimal.Decimal
}

// DefaultSizerConfig matches common FX micro-lot limits.
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		MinLots: decimal.NewFromFloat(0.01),
		MaxLots: decimal.NewFromInt(100),
		LotStep: decimal.NewFromFloat(0.01),
	}
}

// PositionSizer converts capital-at-risk into a clamped, rounded lot size.
// It is stateless and safe for concurrent use.
type PositionSizer struct {
	cfg    SizerConfig
	pips   PipValuer
	logger *zap.Logger
}

func NewPositionSizer(cfg SizerConfig, pips PipValuer, logger *zap.Logger) *PositionSizer {
	return &PositionSizer{cfg: cfg, pips: pips, logger: logger}
}

// CalculatePositionSize returns the lot size risking riskPct percent of equity
// over slDistance pips. The pip value is re-derived once with the computed lot
// size before clamping, since pip value scales non-linearly with size for some
// instruments. Rounding to LotStep uses banker's rounding (half to even).
//
// An unknown symbol (non-positive pip value) fails closed to MinLots rather
// than aborting the cycle.
func (s *PositionSizer) CalculatePositionSize(equity, riskPct, slDistance decimal.Decimal, symbol string) (decimal.Decimal, error) {
	if equity.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: equity must be positive, got %s", ErrInvalidInput, equity)
	}
	if riskPct.Sign() <= 0 || riskPct.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: risk pct must be in (0, 100], got %s", ErrInvalidInput, riskPct)
	}
	if slDistance.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: stop distance must be positive, got %s", ErrInvalidInput, slDistance)
	}

	riskAmount := equity.Mul(riskPct).Div(hundred)

	pipValue := s.pips.PipValue(symbol, s.cfg.MinLots)
	if pipValue.Sign() <= 0 {
		s.logger.Warn("pip value unavailable, falling back to minimum lot size",
			zap.String("symbol", symbol),
			zap.String("pip_value", pipValue.String()))
		return s.cfg.MinLots, nil
	}

	lots := riskAmount.Div(slDistance.Mul(pipValue))

	// One fixed-point refinement with the just-computed size.
	pipValue = s.pips.PipValue(symbol, lots)
	if pipValue.Sign() > 0 {
		lots = riskAmount.Div(slDistance.Mul(pipValue))
	}

	lots = s.clamp(lots)
	lots = s.roundToStep(lots)
	return s.clamp(lots), nil
}

// ValidatePositionSize reports whether lots is within the instrument limits.
func (s *PositionSizer) ValidatePositionSize(lots decimal.Decimal, symbol string) bool {
	return lots.GreaterThanOrEqual(s.cfg.MinLots) && lots.LessThanOrEqual(s.cfg.MaxLots)
}

func (s *PositionSizer) clamp(lots decimal.Decimal) decimal.Decimal {
	if lots.LessThan(s.cfg.MinLots) {
		return s.cfg.MinLots
	}
	if lots.GreaterThan(s.cfg.MaxLots) {
		return s.cfg.MaxLots
	}
	return lots
}

func (s *PositionSizer) roundToStep(lots decimal.Decimal) decimal.Decimal {
	if s.cfg.LotStep.Sign() <= 0 {
		return lots
	}
	steps := lots.Div(s.cfg.LotStep).RoundBank(0)
	return steps.Mul(s.cfg.LotStep)
}
