package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Allenwang2004/Alltrader/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// flatTables builds a schedule with n identical layers, convenient for
// driving the ladder to arbitrary depths in tests.
func flatTables(n int, reverse, trigger, trailing string) Tables {
	t := Tables{}
	for i := 0; i < n; i++ {
		t.Layers = append(t.Layers, Layer{Multiplier: d("1"), ReverseFraction: d(reverse)})
		t.TakeProfit = append(t.TakeProfit, TakeProfitRule{Trigger: d(trigger), Trailing: d(trailing)})
	}
	return t
}

func TestDefaultTables_Valid(t *testing.T) {
	if err := DefaultTables().Validate(); err != nil {
		t.Fatalf("default tables must validate: %v", err)
	}
}

func TestTables_Validate_Rejects(t *testing.T) {
	base := DefaultTables()

	tests := []struct {
		name   string
		mutate func(*Tables)
	}{
		{"EmptyLayers", func(tb *Tables) { tb.Layers = nil }},
		{"TooManyLayers", func(tb *Tables) {
			for len(tb.Layers) <= MaxLayers {
				tb.Layers = append(tb.Layers, tb.Layers[0])
			}
		}},
		{"ShortTakeProfit", func(tb *Tables) { tb.TakeProfit = tb.TakeProfit[:2] }},
		{"ZeroMultiplier", func(tb *Tables) { tb.Layers[3].Multiplier = decimal.Zero }},
		{"NonCumulativeReverse", func(tb *Tables) { tb.Layers[5].ReverseFraction = d("0.01") }},
		{"TrailingAboveTrigger", func(tb *Tables) { tb.TakeProfit[0].Trailing = d("0.02") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := Tables{
				Layers:     append([]Layer(nil), base.Layers...),
				TakeProfit: append([]TakeProfitRule(nil), base.TakeProfit...),
			}
			tt.mutate(&tb)
			if err := tb.Validate(); err == nil {
				t.Error("Validate() should reject the broken table")
			}
		})
	}
}

func TestLadder_AddEntry_MultiplierSequence(t *testing.T) {
	tables := DefaultTables()
	l := NewLadder(tables)
	base := d("2")

	for i, layer := range tables.Layers {
		qty, err := l.AddEntry(d("100"), base)
		if err != nil {
			t.Fatalf("AddEntry %d: %v", i, err)
		}
		want := base.Mul(layer.Multiplier)
		if !qty.Equal(want) {
			t.Errorf("AddEntry %d qty = %s, want %s", i, qty, want)
		}
		if l.Depth() != i+1 {
			t.Errorf("Depth after %d entries = %d", i+1, l.Depth())
		}
	}

	// One past the table must report exhaustion.
	if _, err := l.AddEntry(d("100"), base); !errors.Is(err, ErrLadderExhausted) {
		t.Errorf("AddEntry past table = %v, want ErrLadderExhausted", err)
	}
}

func TestLadder_ShouldAddEntry(t *testing.T) {
	tables := DefaultTables()
	// Seed multiplier 1, next threshold 0.001 (scenario from the reverse
	// schedule with a tight first rung).
	tables.Layers[1].ReverseFraction = d("0.001")

	l := NewLadder(tables)

	// Empty ladder always accepts its seed.
	if !l.ShouldAddEntry(decimal.Zero, decimal.Zero, domain.Long) {
		t.Fatal("empty ladder must accept its seed entry")
	}
	if _, err := l.AddEntry(d("100"), d("1")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		current string
		dir     domain.Direction
		want    bool
	}{
		{"AdverseAboveThreshold", "99.85", domain.Long, true}, // 0.15% >= 0.1%
		{"AdverseAtThreshold", "99.9", domain.Long, true},     // inclusive
		{"AdverseBelowThreshold", "99.95", domain.Long, false},
		{"FavorableMove", "101", domain.Long, false},
		{"ShortMirror", "100.15", domain.Short, true},
		{"ShortFavorable", "99.5", domain.Short, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.ShouldAddEntry(d("100"), d(tt.current), tt.dir)
			if got != tt.want {
				t.Errorf("ShouldAddEntry(100, %s, %v) = %v, want %v", tt.current, tt.dir, got, tt.want)
			}
		})
	}
}

func TestLadder_ShouldAddEntry_ExhaustedTable(t *testing.T) {
	tables := flatTables(2, "0.01", "0.01", "0.004")
	l := NewLadder(tables)
	l.AddEntry(d("100"), d("1"))
	l.AddEntry(d("99"), d("1"))

	// Depth equals table length: no further rungs regardless of price.
	if l.ShouldAddEntry(d("100"), d("1"), domain.Long) {
		t.Error("full ladder must not request another entry")
	}
}

func TestLadder_ReferencePrice_CutoffAtDepthSeven(t *testing.T) {
	l := NewLadder(flatTables(MaxLayers, "0", "0.01", "0.004"))

	// Seven entries (depth index 6): reference is the full weighted average.
	prices := []string{"100", "101", "102", "103", "104", "105", "106"}
	for _, p := range prices {
		l.AddEntry(d(p), d("1"))
	}
	if got := l.ReferencePrice(); !got.Equal(d("103")) {
		t.Errorf("depth 7 reference = %s, want 103", got)
	}

	// The eighth entry crosses the cutoff: first/last weighted average only.
	l.AddEntry(d("110"), d("3"))
	want := d("100").Mul(d("1")).Add(d("110").Mul(d("3"))).Div(d("4")) // 107.5
	if got := l.ReferencePrice(); !got.Equal(want) {
		t.Errorf("depth 8 reference = %s, want %s", got, want)
	}

	// The plain average keeps covering every entry.
	if got := l.AvgEntryPrice(); got.Equal(l.ReferencePrice()) {
		t.Error("AvgEntryPrice should differ from the first/last reference at depth 8")
	}
}

func TestLadder_CheckTakeProfit_TrailingLatch(t *testing.T) {
	l := NewLadder(flatTables(1, "0", "0.01", "0.004"))
	l.AddEntry(d("100"), d("1"))

	steps := []struct {
		price     string
		want      bool
		wantArmed bool
	}{
		{"100.5", false, false}, // 0.5% below trigger
		{"101", false, true},    // 1.0% reaches trigger: latch, no exit
		{"102", false, true},    // 2.0% ratchets the peak
		{"101.7", false, true},  // retrace 0.3% < trailing
		{"100.5", false, true},  // below trigger again: gated, no exit
		{"101.6", true, true},   // retrace to peak-trailing: exit
	}
	var lastPeak decimal.Decimal
	for i, s := range steps {
		got := l.CheckTakeProfit(d(s.price), domain.Long)
		if got != s.want {
			t.Fatalf("step %d price %s: CheckTakeProfit = %v, want %v", i, s.price, got, s.want)
		}
		peak, armed := l.TrailingPeak()
		if armed != s.wantArmed {
			t.Fatalf("step %d price %s: armed = %v, want %v", i, s.price, armed, s.wantArmed)
		}
		if armed && peak.LessThan(lastPeak) {
			t.Fatalf("step %d: trailing peak decreased from %s to %s", i, lastPeak, peak)
		}
		if armed {
			lastPeak = peak
		}
	}
}

func TestLadder_CheckTakeProfit_ShortSide(t *testing.T) {
	l := NewLadder(flatTables(1, "0", "0.01", "0.004"))
	l.AddEntry(d("100"), d("1"))

	if l.CheckTakeProfit(d("99"), domain.Short) {
		t.Error("first touch of trigger should arm, not exit")
	}
	if l.CheckTakeProfit(d("98"), domain.Short) {
		t.Error("new peak should ratchet, not exit")
	}
	// Peak 2.0%, retrace to 1.6% == peak - trailing: exit.
	if !l.CheckTakeProfit(d("98.4"), domain.Short) {
		t.Error("retrace through trailing should exit")
	}
}

func TestLadder_CheckLiquidation_Boundary(t *testing.T) {
	tests := []struct {
		name    string
		current string
		dir     domain.Direction
		want    bool
	}{
		{"LongExactBoundary", "90", domain.Long, false}, // exactly 1/leverage: not liquidated
		{"LongPastBoundary", "89.9", domain.Long, true}, // 10.1% > 10%
		{"LongSafe", "95", domain.Long, false},
		{"ShortExactBoundary", "110", domain.Short, false},
		{"ShortPastBoundary", "110.1", domain.Short, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLadder(flatTables(1, "0", "0.01", "0.004"))
			l.AddEntry(d("100"), d("1"))
			got := l.CheckLiquidation(d(tt.current), tt.dir, d("10"))
			if got != tt.want {
				t.Errorf("CheckLiquidation(%s, %v, 10) = %v, want %v", tt.current, tt.dir, got, tt.want)
			}
		})
	}
}

func TestLadder_UnrealizedPnL(t *testing.T) {
	l := NewLadder(flatTables(2, "0.01", "0.01", "0.004"))
	l.AddEntry(d("100"), d("1"))
	l.AddEntry(d("98"), d("1"))
	// Reference = (100+98)/2 = 99.

	if got := l.UnrealizedPnL(d("100"), domain.Long); !got.Equal(d("2")) {
		t.Errorf("long unrealized = %s, want 2", got)
	}
	if got := l.UnrealizedPnL(d("100"), domain.Short); !got.Equal(d("-2")) {
		t.Errorf("short unrealized = %s, want -2", got)
	}
	l.Reset()
	if !l.UnrealizedPnL(d("100"), domain.Long).IsZero() {
		t.Error("flat ladder has no unrealized PnL")
	}
}

func TestLadder_Reset(t *testing.T) {
	l := NewLadder(flatTables(1, "0", "0.01", "0.004"))
	l.AddEntry(d("100"), d("1"))
	l.CheckTakeProfit(d("101"), domain.Long) // arm the trailing stop

	l.Reset()

	if l.Depth() != 0 {
		t.Error("Reset must clear entries")
	}
	if _, armed := l.TrailingPeak(); armed {
		t.Error("Reset must clear the trailing latch")
	}
	if _, ok := l.FirstEntryPrice(); ok {
		t.Error("flat ladder has no first entry price")
	}
}
