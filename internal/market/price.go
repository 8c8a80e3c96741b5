package market

import (
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/Allenwang2004/Alltrader/pkg/quant"
)

// LastPrice is the only trading-state cell shared across goroutines: the
// feed worker writes it, the controller reads it. Stored as fixed-point
// micros behind an atomic so neither side takes a lock.
type LastPrice struct {
	micros atomic.Int64
}

// Store publishes the latest trade price.
func (p *LastPrice) Store(d decimal.Decimal) {
	p.micros.Store(int64(quant.FromDecimal(d)))
}

// StoreMicros publishes a price already parsed at the wire boundary.
func (p *LastPrice) StoreMicros(m quant.PriceMicros) {
	p.micros.Store(int64(m))
}

// Load returns the latest price. ok is false until the first tick arrives.
func (p *LastPrice) Load() (d decimal.Decimal, ok bool) {
	m := p.micros.Load()
	if m == 0 {
		return decimal.Zero, false
	}
	return quant.PriceMicros(m).Decimal(), true
}
