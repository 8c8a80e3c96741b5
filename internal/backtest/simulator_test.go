package backtest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/risk"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// alwaysSignal emits a fixed verdict whenever consulted.
type alwaysSignal struct {
	sig domain.Signal
}

func (s alwaysSignal) Name() string { return "always" }
func (s alwaysSignal) GenerateSignal(m15, h1 []domain.Bar) domain.Signal {
	return s.sig
}

// onceSignal emits the verdict exactly once, then goes flat.
type onceSignal struct {
	sig   domain.Signal
	fired bool
}

func (s *onceSignal) Name() string { return "once" }
func (s *onceSignal) GenerateSignal(m15, h1 []domain.Bar) domain.Signal {
	if s.fired {
		return domain.SignalFlat
	}
	s.fired = true
	return s.sig
}

// flatBars produces n constant-price 1-minute bars.
func flatBars(n int, price string) []domain.Bar {
	p := d(price)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Bar, n)
	for i := range out {
		out[i] = domain.Bar{
			Ts:     base.Add(time.Duration(i) * time.Minute),
			Open:   p,
			High:   p,
			Low:    p,
			Close:  p,
			Volume: decimal.NewFromInt(1),
		}
	}
	return out
}

// withCloses appends one bar per price to a warm-up prefix.
func withCloses(prefix []domain.Bar, prices ...string) []domain.Bar {
	out := append([]domain.Bar(nil), prefix...)
	last := prefix[len(prefix)-1].Ts
	for i, s := range prices {
		p := d(s)
		out = append(out, domain.Bar{
			Ts:     last.Add(time.Duration(i+1) * time.Minute),
			Open:   p,
			High:   p,
			Low:    p,
			Close:  p,
			Volume: decimal.NewFromInt(1),
		})
	}
	return out
}

func singleLayerTables(trigger, trailing string) risk.Tables {
	return risk.Tables{
		Layers:     []risk.Layer{{Multiplier: d("1"), ReverseFraction: d("0")}},
		TakeProfit: []risk.TakeProfitRule{{Trigger: d(trigger), Trailing: d(trailing)}},
	}
}

func newSim(t *testing.T, tables risk.Tables, strat interface {
	Name() string
	GenerateSignal(m15, h1 []domain.Bar) domain.Signal
}, leverage string) *Simulator {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSimulator(Config{
		Symbol:   "BTC-USDT-SWAP",
		Leverage: d(leverage),
		BaseQty:  d("1"),
		FeeRate:  d("0.0005"),
	}, tables, strat, log)
}

func TestRun_RejectsShortSeries(t *testing.T) {
	sim := newSim(t, singleLayerTables("0.01", "0.004"), alwaysSignal{domain.SignalLong}, "1")

	if _, err := sim.Run(flatBars(100, "100")); err == nil {
		t.Fatal("expected warm-up error for a short series")
	}
}

func TestRun_WarmupThenSingleEntry(t *testing.T) {
	// 6000 warm-up bars plus one signal bar: exactly one entry opens at
	// the final bar's close, and the only recorded trade is the
	// end-of-series forced close of that position.
	sim := newSim(t, risk.DefaultTables(), alwaysSignal{domain.SignalLong}, "1")

	res, err := sim.Run(flatBars(6001, "100"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != domain.CloseFinal {
		t.Errorf("reason = %s", tr.Reason)
	}
	if !tr.AvgEntryPrice.Equal(d("100")) || !tr.ExitPrice.Equal(d("100")) {
		t.Errorf("entry=%s exit=%s", tr.AvgEntryPrice, tr.ExitPrice)
	}
	if !tr.TotalQty.Equal(d("1")) {
		t.Errorf("qty = %s", tr.TotalQty)
	}
	// Forced close at the unchanged price carries no fee.
	if !tr.PnL.IsZero() {
		t.Errorf("pnl = %s", tr.PnL)
	}
}

func TestRun_NoSignalNoTrades(t *testing.T) {
	sim := newSim(t, risk.DefaultTables(), alwaysSignal{domain.SignalFlat}, "1")

	res, err := sim.Run(flatBars(6100, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %d", len(res.Trades))
	}
	if !res.RealizedPnL.IsZero() {
		t.Errorf("realized = %s", res.RealizedPnL)
	}
	if len(res.EquityCurve) != 6100 {
		t.Errorf("curve points = %d", len(res.EquityCurve))
	}
}

func TestRun_ReverseEntryAddsScaledLayer(t *testing.T) {
	tables := risk.Tables{
		Layers: []risk.Layer{
			{Multiplier: d("1"), ReverseFraction: d("0")},
			{Multiplier: d("2"), ReverseFraction: d("0.001")},
			{Multiplier: d("4"), ReverseFraction: d("0.5")},
		},
		TakeProfit: []risk.TakeProfitRule{
			{Trigger: d("0.5"), Trailing: d("0.1")},
			{Trigger: d("0.5"), Trailing: d("0.1")},
			{Trigger: d("0.5"), Trailing: d("0.1")},
		},
	}
	sim := newSim(t, tables, &onceSignal{sig: domain.SignalLong}, "1")

	// Open at 100, then a 0.15% adverse move crosses the 0.1% threshold
	// and the second layer fills at 99.85 with the x2 multiplier.
	bars := withCloses(flatBars(6000, "100"), "100", "99.85")
	res, err := sim.Run(bars)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != domain.CloseFinal {
		t.Errorf("reason = %s", tr.Reason)
	}
	if !tr.TotalQty.Equal(d("3")) {
		t.Errorf("total qty = %s, want 1 + 2", tr.TotalQty)
	}
}

func TestRun_TrailingTakeProfit(t *testing.T) {
	sim := newSim(t, singleLayerTables("0.01", "0.004"), &onceSignal{sig: domain.SignalLong}, "1")

	// Open at 100, arm the trailing stop at +1.5%, close on the retrace
	// to +1%.
	bars := withCloses(flatBars(6000, "100"), "100", "101.5", "101")
	res, err := sim.Run(bars)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != domain.CloseTakeProfit {
		t.Errorf("reason = %s", tr.Reason)
	}
	// Gross 1, fees 0.0005 * (100 + 101).
	want := d("1").Sub(d("0.0005").Mul(d("201")))
	if !tr.PnL.Equal(want) {
		t.Errorf("pnl = %s, want %s", tr.PnL, want)
	}
}

func TestRun_LiquidationBooksFullLoss(t *testing.T) {
	sim := newSim(t, singleLayerTables("0.5", "0.1"), &onceSignal{sig: domain.SignalLong}, "10")

	// 10% adverse exactly is not liquidated; 10.1% is.
	bars := withCloses(flatBars(6000, "100"), "100", "90", "89.9")
	res, err := sim.Run(bars)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != domain.CloseLiquidation {
		t.Errorf("reason = %s", tr.Reason)
	}
	if !tr.PnL.Equal(d("-10")) {
		t.Errorf("pnl = %s, want -totalQty * leverage", tr.PnL)
	}
	if !tr.ExitPrice.Equal(d("89.9")) {
		t.Errorf("exit = %s", tr.ExitPrice)
	}
}

func TestRun_EquityInvariants(t *testing.T) {
	sim := newSim(t, singleLayerTables("0.01", "0.004"), &onceSignal{sig: domain.SignalLong}, "1")

	bars := withCloses(flatBars(6000, "100"), "100", "101.5", "101", "101")
	res, err := sim.Run(bars)
	if err != nil {
		t.Fatal(err)
	}

	sum := decimal.Zero
	for _, tr := range res.Trades {
		sum = sum.Add(tr.PnL)
	}
	final := res.EquityCurve[len(res.EquityCurve)-1]
	if !sum.Equal(final.RealizedPnL) {
		t.Errorf("sum(trade pnl) = %s, final realized = %s", sum, final.RealizedPnL)
	}
	if !sum.Equal(res.RealizedPnL) {
		t.Errorf("result realized = %s, want %s", res.RealizedPnL, sum)
	}
	if !final.UnrealizedPnL.IsZero() {
		t.Errorf("flat end must carry no unrealized pnl, got %s", final.UnrealizedPnL)
	}
	if len(res.EquityCurve) != len(bars) {
		t.Errorf("curve points = %d, bars = %d", len(res.EquityCurve), len(bars))
	}
}

func TestRun_FinalCloseRealignsCurve(t *testing.T) {
	// Position still open at end of series: the forced close must be
	// reflected in the final curve point.
	sim := newSim(t, risk.DefaultTables(), alwaysSignal{domain.SignalLong}, "1")

	res, err := sim.Run(flatBars(6001, "100"))
	if err != nil {
		t.Fatal(err)
	}

	final := res.EquityCurve[len(res.EquityCurve)-1]
	if !final.RealizedPnL.Equal(res.RealizedPnL) {
		t.Errorf("final realized = %s, want %s", final.RealizedPnL, res.RealizedPnL)
	}
	if !final.UnrealizedPnL.IsZero() {
		t.Errorf("unrealized = %s", final.UnrealizedPnL)
	}
}

func TestAggregation_WindowsFillAndCap(t *testing.T) {
	// 6120 bars complete 408 15m aggregates and 102 1h ones; the rolling
	// windows cap both at the configured window size.
	var got15, got1h int
	probe := probeStrategy{counts: &got15, countsH1: &got1h}
	sim := newSim(t, risk.DefaultTables(), probe, "1")

	if _, err := sim.Run(flatBars(6120, "100")); err != nil {
		t.Fatal(err)
	}
	if got15 != 100 {
		t.Errorf("m15 window = %d, want capped at 100", got15)
	}
	if got1h != 100 {
		t.Errorf("h1 window = %d, want capped at 100", got1h)
	}
}

// probeStrategy records the deepest window sizes it was shown.
type probeStrategy struct {
	counts   *int
	countsH1 *int
}

func (p probeStrategy) Name() string { return "probe" }
func (p probeStrategy) GenerateSignal(m15, h1 []domain.Bar) domain.Signal {
	if len(m15) > *p.counts {
		*p.counts = len(m15)
	}
	if len(h1) > *p.countsH1 {
		*p.countsH1 = len(h1)
	}
	return domain.SignalFlat
}
