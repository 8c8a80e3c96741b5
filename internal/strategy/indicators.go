package strategy

import (
	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// closes extracts the close series as float64. Indicator smoothing is
// tolerance math, not accounting; the risk engine never sees these values.
func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// ema computes an exponentially weighted series with alpha = 2/(span+1),
// seeded on the first observation.
func ema(series []float64, span int) []float64 {
	if len(series) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// emaLast is ema but only the final value.
func emaLast(series []float64, span int) float64 {
	if len(series) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(span) + 1.0)
	v := series[0]
	for i := 1; i < len(series); i++ {
		v = alpha*series[i] + (1-alpha)*v
	}
	return v
}

// macdLast returns the final MACD value (fast EMA minus slow EMA).
func macdLast(series []float64, fast, slow int) float64 {
	return emaLast(series, fast) - emaLast(series, slow)
}
