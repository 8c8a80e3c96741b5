package market

import (
	"context"

	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// HistoricalSource supplies confirmed historical bars, oldest first.
// Implemented by the OKX REST adapter, the sqlite candle archive, and test
// fixtures.
type HistoricalSource interface {
	FetchBars(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Bar, error)
}
