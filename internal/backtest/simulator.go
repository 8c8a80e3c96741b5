package backtest

import (
	"fmt"
	"log/slog"

	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/market"
	"github.com/Allenwang2004/Alltrader/internal/risk"
	"github.com/Allenwang2004/Alltrader/internal/strategy"

	"github.com/shopspring/decimal"
)

// MinWarmupBars is the number of 1-minute source bars consumed before any
// signal is evaluated, guaranteeing the higher-timeframe windows are
// populated. Fewer input bars is an input error, not a silent no-op.
const MinWarmupBars = 6000

// Config carries the simulation parameters.
type Config struct {
	Symbol     string
	Leverage   decimal.Decimal
	BaseQty    decimal.Decimal
	FeeRate    decimal.Decimal
	WarmupBars int // 0 means MinWarmupBars
	WindowSize int // rolling window length per timeframe
}

// Result is everything a reporting layer needs: the closed trades, the
// per-bar equity curve, and the final realized PnL.
type Result struct {
	Trades      []domain.TradeRecord
	EquityCurve []domain.EquityCurvePoint
	RealizedPnL decimal.Decimal
}

// Simulator replays the live ladder semantics over a finite 1-minute bar
// series. Fills are immediate at the observed close, no slippage, and the
// whole run is synchronous: identical inputs give identical outputs.
type Simulator struct {
	cfg    Config
	tables risk.Tables
	strat  strategy.Strategy
	log    *slog.Logger
}

// NewSimulator builds a simulator over the given risk schedule and strategy.
func NewSimulator(cfg Config, tables risk.Tables, strat strategy.Strategy, log *slog.Logger) *Simulator {
	if cfg.WarmupBars < MinWarmupBars {
		cfg.WarmupBars = MinWarmupBars
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	return &Simulator{cfg: cfg, tables: tables, strat: strat, log: log}
}

// Run replays the bar series. If a position is still open at the end of the
// series it is force-closed at the final close price so its PnL is never
// silently dropped from the summary.
func (s *Simulator) Run(bars []domain.Bar) (*Result, error) {
	if err := s.tables.Validate(); err != nil {
		return nil, err
	}
	if len(bars) < s.cfg.WarmupBars {
		return nil, fmt.Errorf("backtest: need at least %d bars for warm-up, got %d", s.cfg.WarmupBars, len(bars))
	}

	run := &simRun{
		sim:     s,
		windows: market.NewTimeframeState(s.cfg.WindowSize),
		m15Agg:  market.NewAggregator(15),
		h1Agg:   market.NewAggregator(60),
		ladder:  risk.NewLadder(s.tables),
		res:     &Result{},
	}

	for i, bar := range bars {
		run.step(i, bar)
	}

	if run.ladder.Depth() > 0 {
		run.closePosition(bars[len(bars)-1], domain.CloseFinal)
		// The final point was sampled with the position still open;
		// re-sample it so the curve ends flat with all PnL realized.
		run.res.EquityCurve[len(run.res.EquityCurve)-1] = domain.EquityCurvePoint{
			Ts:          bars[len(bars)-1].Ts,
			RealizedPnL: run.res.RealizedPnL,
			TotalPnL:    run.res.RealizedPnL,
		}
	}

	s.log.Info("backtest finished",
		slog.String("symbol", s.cfg.Symbol),
		slog.Int("bars", len(bars)),
		slog.Int("trades", len(run.res.Trades)),
		slog.String("realized_pnl", run.res.RealizedPnL.String()))

	return run.res, nil
}

// simRun is the mutable state of one replay.
type simRun struct {
	sim     *Simulator
	windows *market.TimeframeState
	m15Agg  *market.Aggregator
	h1Agg   *market.Aggregator
	ladder  *risk.Ladder
	dir     domain.Direction
	res     *Result
}

func (r *simRun) step(i int, bar domain.Bar) {
	if agg, done := r.m15Agg.Push(bar); done {
		r.windows.M15.Append(agg)
	}
	if agg, done := r.h1Agg.Push(bar); done {
		r.windows.H1.Append(agg)
	}

	price := bar.Close

	if r.ladder.Depth() > 0 {
		r.checkRisk(bar, price)
	} else if i >= r.sim.cfg.WarmupBars {
		sig := r.sim.strat.GenerateSignal(r.windows.M15.Bars(), r.windows.H1.Bars())
		if sig != domain.SignalFlat {
			r.open(sig.Direction(), bar)
		}
	}

	r.appendEquity(bar, price)
}

// checkRisk applies the same priority order as the live controller: add,
// liquidation, take-profit. At most one action per bar.
func (r *simRun) checkRisk(bar domain.Bar, price decimal.Decimal) {
	entryPrice, _ := r.ladder.FirstEntryPrice()

	if r.ladder.ShouldAddEntry(entryPrice, price, r.dir) {
		qty, err := r.ladder.AddEntry(price, r.sim.cfg.BaseQty)
		if err != nil {
			r.closePosition(bar, domain.CloseLadderExhausted)
			return
		}
		r.sim.log.Debug("layer added",
			slog.Time("ts", bar.Ts),
			slog.Int("depth", r.ladder.Depth()),
			slog.String("price", price.String()),
			slog.String("qty", qty.String()))
		return
	}

	if r.ladder.CheckLiquidation(price, r.dir, r.sim.cfg.Leverage) {
		r.closePosition(bar, domain.CloseLiquidation)
		return
	}

	if r.ladder.CheckTakeProfit(price, r.dir) {
		r.closePosition(bar, domain.CloseTakeProfit)
	}
}

func (r *simRun) open(dir domain.Direction, bar domain.Bar) {
	r.ladder.Reset()
	r.dir = dir
	if _, err := r.ladder.AddEntry(bar.Close, r.sim.cfg.BaseQty); err != nil {
		return
	}
	r.sim.log.Debug("position opened",
		slog.Time("ts", bar.Ts),
		slog.String("direction", dir.String()),
		slog.String("price", bar.Close.String()))
}

// closePosition books the trade at the bar's close. Liquidation is the full
// levered loss; the end-of-series forced close carries no fee; every other
// close pays taker fees on both legs.
func (r *simRun) closePosition(bar domain.Bar, reason domain.CloseReason) {
	exitPrice := bar.Close
	avg := r.ladder.AvgEntryPrice()
	qty := r.ladder.TotalQty()

	var pnl decimal.Decimal
	switch reason {
	case domain.CloseLiquidation:
		pnl = qty.Mul(r.sim.cfg.Leverage).Neg()
	case domain.CloseFinal:
		pnl = r.grossPnL(exitPrice, avg, qty)
	default:
		gross := r.grossPnL(exitPrice, avg, qty)
		fees := r.sim.cfg.FeeRate.Mul(avg.Mul(qty).Add(exitPrice.Mul(qty)))
		pnl = gross.Sub(fees)
	}

	r.res.Trades = append(r.res.Trades, domain.TradeRecord{
		Symbol:        r.sim.cfg.Symbol,
		Direction:     r.dir,
		AvgEntryPrice: avg,
		ExitPrice:     exitPrice,
		TotalQty:      qty,
		PnL:           pnl,
		Reason:        reason,
		ClosedAt:      bar.Ts,
	})
	r.res.RealizedPnL = r.res.RealizedPnL.Add(pnl)
	r.ladder.Reset()

	r.sim.log.Debug("position closed",
		slog.Time("ts", bar.Ts),
		slog.String("reason", string(reason)),
		slog.String("exit", exitPrice.String()),
		slog.String("pnl", pnl.String()))
}

func (r *simRun) grossPnL(exitPrice, avg, qty decimal.Decimal) decimal.Decimal {
	gross := exitPrice.Sub(avg)
	if r.dir == domain.Short {
		gross = gross.Neg()
	}
	return gross.Mul(qty)
}

func (r *simRun) appendEquity(bar domain.Bar, price decimal.Decimal) {
	unrealized := decimal.Zero
	if r.ladder.Depth() > 0 {
		unrealized = r.ladder.UnrealizedPnL(price, r.dir)
	}
	r.res.EquityCurve = append(r.res.EquityCurve, domain.EquityCurvePoint{
		Ts:            bar.Ts,
		RealizedPnL:   r.res.RealizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      r.res.RealizedPnL.Add(unrealized),
	})
}
