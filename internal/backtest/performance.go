package backtest

import (
	"math"

	"github.com/Allenwang2004/Alltrader/internal/domain"

	"github.com/shopspring/decimal"
)

// barsPerYear annualizes a 1-minute bar series.
const barsPerYear = 525600

// Performance is the summary a reporting layer renders. Metrics are
// derived from the trade list and equity curve, never mutating them.
type Performance struct {
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	SharpeRatio      float64
	TradeCount       int
	WinRate          float64
	AvgTradePnL      float64
	MaxTradePnL      float64
	MinTradePnL      float64
}

// Evaluate computes the summary against a starting equity. The Sharpe ratio
// prefers the per-bar return series; with fewer than two curve points it
// falls back to the per-trade PnL series.
func Evaluate(res *Result, initialEquity decimal.Decimal) Performance {
	p := Performance{TradeCount: len(res.Trades)}

	initial := initialEquity.InexactFloat64()
	if initial <= 0 || res == nil {
		return p
	}

	equity := equitySeries(res.EquityCurve, initial)
	if len(equity) > 0 {
		final := equity[len(equity)-1]
		p.TotalReturn = final/initial - 1
		if final > 0 {
			p.AnnualizedReturn = math.Pow(final/initial, barsPerYear/float64(len(equity))) - 1
		} else {
			p.AnnualizedReturn = -1
		}
		p.MaxDrawdown = maxDrawdown(equity)
	}

	if len(equity) >= 2 {
		p.SharpeRatio = sharpe(barReturns(equity), barsPerYear)
	} else if len(res.Trades) > 0 {
		p.SharpeRatio = sharpe(tradePnLs(res.Trades), float64(len(res.Trades)))
	}

	if len(res.Trades) > 0 {
		pnls := tradePnLs(res.Trades)
		wins := 0
		sum, maxPnL, minPnL := 0.0, pnls[0], pnls[0]
		for _, v := range pnls {
			if v > 0 {
				wins++
			}
			sum += v
			maxPnL = math.Max(maxPnL, v)
			minPnL = math.Min(minPnL, v)
		}
		p.WinRate = float64(wins) / float64(len(pnls))
		p.AvgTradePnL = sum / float64(len(pnls))
		p.MaxTradePnL = maxPnL
		p.MinTradePnL = minPnL
	}

	return p
}

func equitySeries(curve []domain.EquityCurvePoint, initial float64) []float64 {
	out := make([]float64, len(curve))
	for i, pt := range curve {
		out[i] = initial + pt.TotalPnL.InexactFloat64()
	}
	return out
}

func barReturns(equity []float64) []float64 {
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

func tradePnLs(trades []domain.TradeRecord) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.PnL.InexactFloat64()
	}
	return out
}

// maxDrawdown is the largest peak-to-trough fraction of the equity series.
func maxDrawdown(equity []float64) float64 {
	peak, maxDD := math.Inf(-1), 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe is mean/std of the return series scaled by sqrt(periodsPerYear).
// A zero-variance series has no meaningful ratio and reports 0.
func sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}
