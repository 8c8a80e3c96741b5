package strategy

import (
	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// LongStrategy enters long when three conditions line up: the 1-hour MACD
// regime is positive, the last four 15-minute closes trace a V (two down
// steps then a reclaim), and the 15-minute EMA4 sits above EMA16.
type LongStrategy struct {
	fast, slow, signal int
}

// NewLongStrategy uses the conventional 12/26/9 MACD parameters.
func NewLongStrategy() *LongStrategy {
	return &LongStrategy{fast: 12, slow: 26, signal: 9}
}

func (s *LongStrategy) Name() string { return "macd_1h_15m_ema_long" }

func (s *LongStrategy) GenerateSignal(m15, h1 []domain.Bar) domain.Signal {
	if len(h1) < s.slow || len(m15) < 17 {
		return domain.SignalFlat
	}

	if macdLast(closes(h1), s.fast, s.slow) <= 0 {
		return domain.SignalFlat
	}

	c := closes(m15)
	n := len(c)
	vShape := c[n-4] > c[n-3] && c[n-3] > c[n-2] && c[n-2] < c[n-1]
	if !vShape {
		return domain.SignalFlat
	}

	if emaLast(c, 4) <= emaLast(c, 16) {
		return domain.SignalFlat
	}

	return domain.SignalLong
}

// ShortStrategy is the mirror of LongStrategy: negative 1-hour MACD regime,
// an inverted V on the 15-minute closes, EMA4 below EMA16.
type ShortStrategy struct {
	fast, slow, signal int
}

func NewShortStrategy() *ShortStrategy {
	return &ShortStrategy{fast: 12, slow: 26, signal: 9}
}

func (s *ShortStrategy) Name() string { return "macd_1h_15m_ema_short" }

func (s *ShortStrategy) GenerateSignal(m15, h1 []domain.Bar) domain.Signal {
	if len(h1) < s.slow || len(m15) < 17 {
		return domain.SignalFlat
	}

	if macdLast(closes(h1), s.fast, s.slow) >= 0 {
		return domain.SignalFlat
	}

	c := closes(m15)
	n := len(c)
	peak := c[n-4] < c[n-3] && c[n-3] < c[n-2] && c[n-2] > c[n-1]
	if !peak {
		return domain.SignalFlat
	}

	if emaLast(c, 4) >= emaLast(c, 16) {
		return domain.SignalFlat
	}

	return domain.SignalShort
}
