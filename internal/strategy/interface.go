package strategy

import (
	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// Strategy turns multi-timeframe bar windows into a directional verdict.
// Implementations must be deterministic: same windows, same signal. Closing
// an open position is the risk engine's job, so a strategy only ever asks
// for an entry or stays flat.
type Strategy interface {
	Name() string

	// GenerateSignal inspects the 15-minute and 1-hour windows (oldest bar
	// first) and returns +1 long, -1 short, or 0 flat.
	GenerateSignal(m15, h1 []domain.Bar) domain.Signal
}

// ForName maps a config name onto a strategy. Unknown names fall back to
// the long strategy.
func ForName(name string) Strategy {
	switch name {
	case "short":
		return NewShortStrategy()
	case "macd":
		return NewMACDStrategy()
	default:
		return NewLongStrategy()
	}
}
