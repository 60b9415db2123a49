package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantarc/riskguard/internal/events"
	"github.com/quantarc/riskguard/pkg/metrics"
)

// Verdict is the tagged outcome of a breach check. Indeterminate means the
// check could not be assessed from the supplied data; it is distinct from
// NoBreach so bad upstream feeds are never mistaken for healthy accounts.
type Verdict int

const (
	NoBreach Verdict = iota
	Breach
	Indeterminate
)

func (v Verdict) String() string {
	switch v {
	case NoBreach:
		return "no_breach"
	case Breach:
		return "breach"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Breached reports whether the verdict is a confirmed breach.
func (v Verdict) Breached() bool {
	return v == Breach
}

// PositionCloser is the execution collaborator the kill switch forces
// liquidation through. It returns identifiers of the positions it closed.
type PositionCloser interface {
	CloseAllPositions(ctx context.Context) ([]string, error)
}

// KillSwitch is the latched emergency halt. Once triggered it stays active
// until an explicit authorized reset; it never auto-resets. One instance
// exists per running engine process.
type KillSwitch struct {
	mu          sync.RWMutex
	active      bool
	triggeredAt time.Time

	closer PositionCloser
	bus    *events.Bus
	logger *zap.Logger
}

func NewKillSwitch(closer PositionCloser, bus *events.Bus, logger *zap.Logger) *KillSwitch {
	return &KillSwitch{closer: closer, bus: bus, logger: logger}
}

// IsActive reports the latched state.
func (k *KillSwitch) IsActive() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// TriggeredAt returns the activation time if the switch has been triggered.
func (k *KillSwitch) TriggeredAt() (time.Time, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.triggeredAt, k.active
}

// CheckDrawdown evaluates equity decline from its peak against maxPct.
// Breach at drawdown >= maxPct. Non-positive peak equity cannot be assessed
// and indicates bad upstream data.
func (k *KillSwitch) CheckDrawdown(equity, peakEquity, maxPct decimal.Decimal) Verdict {
	if peakEquity.Sign() <= 0 {
		k.logger.Warn("cannot assess drawdown: non-positive peak equity",
			zap.String("peak_equity", peakEquity.String()),
			zap.String("equity", equity.String()))
		return Indeterminate
	}
	dd := DrawdownPct(equity, peakEquity)
	if dd.GreaterThanOrEqual(maxPct) {
		return Breach
	}
	return NoBreach
}

// CheckDailyLoss evaluates today's realized loss against limitPct of the
// session starting balance. Breach at loss >= limit. Profitable days never
// breach.
func (k *KillSwitch) CheckDailyLoss(todayPnL, startingBalance, limitPct decimal.Decimal) Verdict {
	if startingBalance.Sign() <= 0 {
		k.logger.Warn("cannot assess daily loss: non-positive starting balance",
			zap.String("starting_balance", startingBalance.String()))
		return Indeterminate
	}
	if todayPnL.Sign() >= 0 {
		return NoBreach
	}
	lossPct := todayPnL.Neg().Div(startingBalance).Mul(hundred)
	if lossPct.GreaterThanOrEqual(limitPct) {
		return Breach
	}
	return NoBreach
}

// CheckPerTradeRisk evaluates the candidate trade's capital at risk against
// maxPct of equity. Unlike the other checks this uses strict inequality: the
// trade has not changed state yet, so risking exactly the limit is accepted.
func (k *KillSwitch) CheckPerTradeRisk(riskAmount, equity, maxPct decimal.Decimal) Verdict {
	if equity.Sign() <= 0 {
		k.logger.Warn("cannot assess per-trade risk: non-positive equity",
			zap.String("equity", equity.String()))
		return Indeterminate
	}
	riskPct := riskAmount.Div(equity).Mul(hundred)
	if riskPct.GreaterThan(maxPct) {
		return Breach
	}
	return NoBreach
}

// Trigger latches the halt and force-closes all open positions. Concurrent
// callers collapse to a single close-and-publish sequence; re-entrant calls
// observe the latch and no-op. The lock covers only the check-and-set so a
// slow execution collaborator never stalls unrelated risk checks.
func (k *KillSwitch) Trigger(ctx context.Context, reason string) {
	k.mu.Lock()
	if k.active {
		k.mu.Unlock()
		return
	}
	triggeredAt := time.Now().UTC()
	k.active = true
	k.triggeredAt = triggeredAt
	k.mu.Unlock()

	metrics.KillSwitchActive.Set(1)
	k.logger.Error("kill switch triggered, halting all trading",
		zap.String("reason", reason))

	var closed []string
	if k.closer != nil {
		ids, err := k.closer.CloseAllPositions(ctx)
		if err != nil {
			// The switch stays triggered even if liquidation fails; the
			// alternative is trading with an unenforceable halt.
			k.logger.Error("force-close of open positions failed",
				zap.String("reason", reason),
				zap.Error(err))
		}
		closed = ids
		metrics.PositionsForceClosed.Add(float64(len(closed)))
	}

	if k.bus != nil {
		_ = k.bus.Publish(ctx, events.EventKillSwitchTriggered, map[string]any{
			"reason":           reason,
			"positions_closed": len(closed),
			"closed_ids":       closed,
			"triggered_at":     triggeredAt.Format(time.RFC3339),
		}, "kill_switch", events.SeverityCritical)
	}
}

// Reset clears the latch. It requires the explicit admin override supplied by
// the authenticated API layer; without it the call always fails. Reset
// succeeds even if the switch was never triggered.
func (k *KillSwitch) Reset(adminOverride bool) error {
	if !adminOverride {
		return fmt.Errorf("%w: kill switch reset requires admin override", ErrUnauthorized)
	}

	k.mu.Lock()
	k.active = false
	k.triggeredAt = time.Time{}
	k.mu.Unlock()

	metrics.KillSwitchActive.Set(0)
	k.logger.Warn("kill switch reset by admin override")
	return nil
}

// DrawdownPct returns the percentage decline of equity from peak, floored at
// zero. Callers must ensure peak is positive.
func DrawdownPct(equity, peak decimal.Decimal) decimal.Decimal {
	dd := peak.Sub(equity).Div(peak).Mul(hundred)
	if dd.Sign() < 0 {
		return decimal.Zero
	}
	return dd
}
