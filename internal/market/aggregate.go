package market

import (
	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// Aggregator incrementally rolls source bars into a higher timeframe:
// open = first constituent open, high = max, low = min, close = last,
// volume = sum, timestamp = first constituent's. A bar completes every
// `size` source bars.
type Aggregator struct {
	size  int
	count int
	cur   domain.Bar
}

// NewAggregator builds aggregates of `size` consecutive source bars.
func NewAggregator(size int) *Aggregator {
	return &Aggregator{size: size}
}

// Push folds one source bar in. When the aggregate completes it is returned
// with done=true and the accumulator resets.
func (a *Aggregator) Push(b domain.Bar) (agg domain.Bar, done bool) {
	if a.count == 0 {
		a.cur = b
	} else {
		if b.High.GreaterThan(a.cur.High) {
			a.cur.High = b.High
		}
		if b.Low.LessThan(a.cur.Low) {
			a.cur.Low = b.Low
		}
		a.cur.Close = b.Close
		a.cur.Volume = a.cur.Volume.Add(b.Volume)
	}

	a.count++
	if a.count < a.size {
		return domain.Bar{}, false
	}

	out := a.cur
	a.count = 0
	a.cur = domain.Bar{}
	return out, true
}
