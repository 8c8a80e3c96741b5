package strategy

import (
	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// MACDStrategy follows the raw MACD/signal-line cross on the 15-minute
// window: long while MACD is above its signal line, short while below.
type MACDStrategy struct {
	fast, slow, signal int
}

func NewMACDStrategy() *MACDStrategy {
	return &MACDStrategy{fast: 12, slow: 26, signal: 9}
}

func (s *MACDStrategy) Name() string { return "macd_cross" }

func (s *MACDStrategy) GenerateSignal(m15, _ []domain.Bar) domain.Signal {
	if len(m15) < s.slow+s.signal {
		return domain.SignalFlat
	}

	c := closes(m15)
	fast := ema(c, s.fast)
	slow := ema(c, s.slow)

	macd := make([]float64, len(c))
	for i := range c {
		macd[i] = fast[i] - slow[i]
	}
	sigLine := emaLast(macd, s.signal)
	last := macd[len(macd)-1]

	switch {
	case last > sigLine:
		return domain.SignalLong
	case last < sigLine:
		return domain.SignalShort
	default:
		return domain.SignalFlat
	}
}
