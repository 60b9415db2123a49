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

// Manager combines kill switch state and position sizing into a single
// pre-trade admission decision, and feeds realized P&L back after trade close.
// It is the only caller of KillSwitch.Trigger, keeping one well-defined halt
// entry point.
type Manager struct {
	limits     Limits
	killSwitch *KillSwitch
	sizer      *PositionSizer
	bus        *events.Bus
	logger     *zap.Logger

	mu            sync.RWMutex
	trackedPeak   decimal.Decimal
	lastEquity    decimal.Decimal
	marginLevel   decimal.Decimal
	dailyPnL      decimal.Decimal
	dailyLimitHit bool
}

func NewManager(limits Limits, killSwitch *KillSwitch, sizer *PositionSizer, bus *events.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		limits:     limits,
		killSwitch: killSwitch,
		sizer:      sizer,
		bus:        bus,
		logger:     logger,
	}
}

// ObserveEquity records an equity snapshot, maintaining the running peak used
// when a trade context does not carry one, and the margin level for reporting.
func (m *Manager) ObserveEquity(equity, marginLevel decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEquity = equity
	m.marginLevel = marginLevel
	if equity.GreaterThan(m.trackedPeak) {
		m.trackedPeak = equity
	}
}

// PreTradeCheck gates a candidate trade. Order of evaluation: latched kill
// switch, drawdown, per-trade risk, then sizing. A breach triggers the kill
// switch and rejects; invalid sizing inputs reject without triggering, since
// a malformed request is not an account-level emergency.
func (m *Manager) PreTradeCheck(ctx context.Context, tc TradeContext) CheckResult {
	dailyPnL := m.snapshotDailyPnL()

	if m.killSwitch.IsActive() {
		metrics.RiskChecks.WithLabelValues("rejected").Inc()
		return CheckResult{
			Approved: false,
			Reason:   "kill switch active",
			DailyPnL: dailyPnL,
		}
	}

	peak := tc.PeakEquity
	if peak.Sign() <= 0 {
		peak = m.snapshotPeak()
	}

	var drawdown decimal.Decimal
	if peak.Sign() > 0 {
		drawdown = DrawdownPct(tc.Equity, peak)
	}

	switch m.killSwitch.CheckDrawdown(tc.Equity, peak, m.limits.MaxDrawdownPct) {
	case Breach:
		m.killSwitch.Trigger(ctx, fmt.Sprintf("max drawdown breached: %s%% >= %s%%",
			drawdown.StringFixed(2), m.limits.MaxDrawdownPct.StringFixed(2)))
		metrics.RiskChecks.WithLabelValues("rejected").Inc()
		return CheckResult{
			Approved:    false,
			Reason:      "max drawdown breached",
			RiskScore:   100,
			DrawdownPct: drawdown,
			DailyPnL:    dailyPnL,
		}
	case Indeterminate:
		m.logger.Warn("drawdown indeterminate, continuing with remaining checks",
			zap.String("symbol", tc.Symbol))
	}

	riskAmount := tc.Equity.Mul(tc.RiskPct).Div(hundred)
	switch m.killSwitch.CheckPerTradeRisk(riskAmount, tc.Equity, m.limits.PerTradeRiskPct) {
	case Breach:
		m.killSwitch.Trigger(ctx, fmt.Sprintf("per-trade risk breached: %s%% > %s%%",
			tc.RiskPct.StringFixed(2), m.limits.PerTradeRiskPct.StringFixed(2)))
		metrics.RiskChecks.WithLabelValues("rejected").Inc()
		return CheckResult{
			Approved:    false,
			Reason:      "per-trade risk limit breached",
			RiskScore:   100,
			DrawdownPct: drawdown,
			DailyPnL:    dailyPnL,
		}
	case Indeterminate:
		m.logger.Warn("per-trade risk indeterminate, continuing",
			zap.String("symbol", tc.Symbol))
	}

	lots, err := m.sizer.CalculatePositionSize(tc.Equity, tc.RiskPct, tc.StopDistance, tc.Symbol)
	if err != nil {
		metrics.RiskChecks.WithLabelValues("rejected").Inc()
		return CheckResult{
			Approved:    false,
			Reason:      fmt.Sprintf("position sizing failed: %v", err),
			DrawdownPct: drawdown,
			DailyPnL:    dailyPnL,
		}
	}

	metrics.RiskChecks.WithLabelValues("approved").Inc()
	return CheckResult{
		Approved:     true,
		Reason:       "approved",
		RiskScore:    m.riskScore(drawdown, tc.RiskPct),
		PositionSize: lots,
		DrawdownPct:  drawdown,
		DailyPnL:     dailyPnL,
	}
}

// PostTradeUpdate feeds realized P&L back after a trade closes. A daily-loss
// breach latches the daily limit and triggers the kill switch.
func (m *Manager) PostTradeUpdate(ctx context.Context, todayPnL, startingBalance decimal.Decimal) {
	m.mu.Lock()
	m.dailyPnL = todayPnL
	m.mu.Unlock()

	if m.killSwitch.CheckDailyLoss(todayPnL, startingBalance, m.limits.DailyLossLimitPct).Breached() {
		m.mu.Lock()
		m.dailyLimitHit = true
		m.mu.Unlock()

		if m.bus != nil {
			_ = m.bus.Publish(ctx, events.EventDailyLimitHit, map[string]any{
				"daily_pnl":        todayPnL.String(),
				"starting_balance": startingBalance.String(),
				"limit_pct":        m.limits.DailyLossLimitPct.String(),
			}, "risk_manager", events.SeverityError)
		}
		m.killSwitch.Trigger(ctx, fmt.Sprintf("daily loss limit breached: pnl %s against balance %s",
			todayPnL.StringFixed(2), startingBalance.StringFixed(2)))
	}
}

// Snapshot returns the current reporting view.
func (m *Manager) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var drawdown decimal.Decimal
	if m.trackedPeak.Sign() > 0 {
		drawdown = DrawdownPct(m.lastEquity, m.trackedPeak)
	}

	return Metrics{
		DrawdownPct:      drawdown,
		DailyPnL:         m.dailyPnL,
		MarginLevel:      m.marginLevel,
		KillSwitchActive: m.killSwitch.IsActive(),
		DailyLimitHit:    m.dailyLimitHit,
		Timestamp:        time.Now().UTC(),
	}
}

// riskScore maps drawdown and proximity to the per-trade limit onto [0, 100].
// Monotonic in both inputs: 60% weight on drawdown consumed, 40% on the share
// of the per-trade budget requested.
func (m *Manager) riskScore(drawdown, riskPct decimal.Decimal) float64 {
	score := decimal.Zero
	if m.limits.MaxDrawdownPct.Sign() > 0 {
		score = score.Add(drawdown.Div(m.limits.MaxDrawdownPct).Mul(decimal.NewFromInt(60)))
	}
	if m.limits.PerTradeRiskPct.Sign() > 0 {
		score = score.Add(riskPct.Div(m.limits.PerTradeRiskPct).Mul(decimal.NewFromInt(40)))
	}
	if score.GreaterThan(hundred) {
		score = hundred
	}
	if score.Sign() < 0 {
		score = decimal.Zero
	}
	f, _ := score.Float64()
	return f
}

func (m *Manager) snapshotDailyPnL() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL
}

func (m *Manager) snapshotPeak() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trackedPeak
}
