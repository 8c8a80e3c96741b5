package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxLayers caps the ladder depth regardless of configuration.
const MaxLayers = 13

// Layer configures one ladder rung: the quantity multiplier applied to the
// base order size and the adverse-move threshold that arms the rung.
// ReverseFraction is cumulative, measured from the first entry price, so the
// schedule must be non-decreasing.
type Layer struct {
	Multiplier      decimal.Decimal
	ReverseFraction decimal.Decimal
}

// TakeProfitRule configures the exit for a given ladder depth: the PnL
// fraction that arms the trailing stop and the retrace that fires it.
type TakeProfitRule struct {
	Trigger  decimal.Decimal
	Trailing decimal.Decimal
}

// Tables bundles the immutable risk configuration. Loaded once at startup
// and shared read-only across symbols.
type Tables struct {
	Layers     []Layer
	TakeProfit []TakeProfitRule
}

// DefaultTables returns the production ladder schedule. Row 0 is the seed
// entry; its reverse fraction is never consulted.
func DefaultTables() Tables {
	mult := []string{"1", "1", "2", "4", "2", "2", "10", "5", "5", "15", "15", "15", "20"}
	rev := []string{"0", "0.01", "0.03", "0.05", "0.07", "0.09", "0.14", "0.17", "0.20", "0.27", "0.31", "0.35", "0.45"}
	trigger := []string{"0.01", "0.01", "0.01", "0.01", "0.012", "0.012", "0.012", "0.014", "0.014", "0.014", "0.016", "0.016", "0.016"}
	trail := []string{"0.004", "0.003", "0.003", "0.003", "0.004", "0.004", "0.004", "0.006", "0.006", "0.006", "0.008", "0.008", "0.008"}

	t := Tables{
		Layers:     make([]Layer, len(mult)),
		TakeProfit: make([]TakeProfitRule, len(trigger)),
	}
	for i := range mult {
		t.Layers[i] = Layer{
			Multiplier:      decimal.RequireFromString(mult[i]),
			ReverseFraction: decimal.RequireFromString(rev[i]),
		}
	}
	for i := range trigger {
		t.TakeProfit[i] = TakeProfitRule{
			Trigger:  decimal.RequireFromString(trigger[i]),
			Trailing: decimal.RequireFromString(trail[i]),
		}
	}
	return t
}

// Validate checks the schedule invariants. A broken table is a fatal
// configuration error at startup.
func (t Tables) Validate() error {
	if len(t.Layers) == 0 {
		return fmt.Errorf("risk: layer table is empty")
	}
	if len(t.Layers) > MaxLayers {
		return fmt.Errorf("risk: layer table has %d rows, max %d", len(t.Layers), MaxLayers)
	}
	if len(t.TakeProfit) < len(t.Layers) {
		return fmt.Errorf("risk: take-profit table has %d rows, need one per layer (%d)",
			len(t.TakeProfit), len(t.Layers))
	}

	prev := decimal.Zero
	for i, l := range t.Layers {
		if !l.Multiplier.IsPositive() {
			return fmt.Errorf("risk: layer %d multiplier %s must be positive", i, l.Multiplier)
		}
		if l.ReverseFraction.IsNegative() {
			return fmt.Errorf("risk: layer %d reverse fraction %s must not be negative", i, l.ReverseFraction)
		}
		if i > 0 && l.ReverseFraction.LessThan(prev) {
			return fmt.Errorf("risk: layer %d reverse fraction %s breaks cumulative order (prev %s)",
				i, l.ReverseFraction, prev)
		}
		prev = l.ReverseFraction
	}

	for i, r := range t.TakeProfit {
		if !r.Trigger.IsPositive() {
			return fmt.Errorf("risk: take-profit %d trigger %s must be positive", i, r.Trigger)
		}
		if !r.Trailing.IsPositive() || r.Trailing.GreaterThanOrEqual(r.Trigger) {
			return fmt.Errorf("risk: take-profit %d trailing %s must be in (0, trigger)", i, r.Trailing)
		}
	}
	return nil
}
