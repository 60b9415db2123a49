package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Limits are the externally supplied risk thresholds. The subsystem consumes
// them; it never reads configuration sources directly.
type Limits struct {
	MaxDrawdownPct    decimal.Decimal
	DailyLossLimitPct decimal.Decimal
	PerTradeRiskPct   decimal.Decimal
}

// TradeContext describes a candidate trade presented for admission.
type TradeContext struct {
	Symbol       string
	Equity       decimal.Decimal
	PeakEquity   decimal.Decimal
	RiskPct      decimal.Decimal
	StopDistance decimal.Decimal
}

// CheckResult is the admission decision for one candidate trade. It is
// produced fresh per check and not persisted by this subsystem.
type CheckResult struct {
	Approved     bool            `json:"approved"`
	Reason       string          `json:"reason"`
	RiskScore    float64         `json:"risk_score"`
	PositionSize decimal.Decimal `json:"position_size"`
	DrawdownPct  decimal.Decimal `json:"drawdown_pct"`
	DailyPnL     decimal.Decimal `json:"daily_pnl"`
}

// Metrics is a point-in-time reporting snapshot, recomputed on demand.
type Metrics struct {
	DrawdownPct      decimal.Decimal `json:"drawdown_pct"`
	DailyPnL         decimal.Decimal `json:"daily_pnl"`
	MarginLevel      decimal.Decimal `json:"margin_level"`
	KillSwitchActive bool            `json:"kill_switch_active"`
	DailyLimitHit    bool            `json:"daily_limit_hit"`
	Timestamp        time.Time       `json:"timestamp"`
}
