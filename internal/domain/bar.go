package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interval identifies a candle timeframe.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
)

// Minutes returns the interval length in minutes.
func (i Interval) Minutes() int {
	switch i {
	case Interval1m:
		return 1
	case Interval15m:
		return 15
	case Interval1h:
		return 60
	default:
		return 0
	}
}

// Bar is one confirmed OHLCV candle. Prices and volume are exact decimals;
// float64 never enters the risk path.
type Bar struct {
	Ts     time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}
