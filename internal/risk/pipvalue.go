package risk

import (
	"sync"

	"github.com/shopspring/decimal"
)

// StaticPipTable is a PipValuer backed by a fixed per-lot pip value table for
// linear instruments. Unknown symbols report zero, which the sizer treats as
// fail-closed to the minimum lot size.
type StaticPipTable struct {
	mu     sync.RWMutex
	perLot map[string]decimal.Decimal
}

// NewStaticPipTable seeds the table. A nil map starts empty.
func NewStaticPipTable(perLot map[string]decimal.Decimal) *StaticPipTable {
	if perLot == nil {
		perLot = make(map[string]decimal.Decimal)
	}
	return &StaticPipTable{perLot: perLot}
}

// DefaultPipTable covers the USD-quoted FX majors at the standard-lot pip
// value of 10 USD.
func DefaultPipTable() *StaticPipTable {
	ten := decimal.NewFromInt(10)
	return NewStaticPipTable(map[string]decimal.Decimal{
		"EURUSD": ten,
		"GBPUSD": ten,
		"AUDUSD": ten,
		"NZDUSD": ten,
		"USDCAD": ten,
		"USDCHF": ten,
		"USDJPY": decimal.NewFromFloat(9.1),
		"XAUUSD": ten,
	})
}

// Set registers or updates a symbol's per-lot pip value.
func (t *StaticPipTable) Set(symbol string, perLot decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perLot[symbol] = perLot
}

// PipValue returns the per-lot pip value. Linear instruments do not scale
// with lot size, so lots is ignored here.
func (t *StaticPipTable) PipValue(symbol string, lots decimal.Decimal) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.perLot[symbol]
}
