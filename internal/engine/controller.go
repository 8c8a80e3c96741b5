package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/infra"
	"github.com/Allenwang2004/Alltrader/internal/market"
	"github.com/Allenwang2004/Alltrader/internal/risk"
	"github.com/Allenwang2004/Alltrader/internal/strategy"

	"github.com/shopspring/decimal"
)

// State is the controller's position in its Signal/Order/Risk cycle.
type State string

const (
	StateSignal State = "SIGNAL"
	StateOrder  State = "ORDER"
	StateRisk   State = "RISK"
)

type intentKind int

const (
	intentNone intentKind = iota
	intentOpen
	intentAdd
	intentClose
)

// intent is the queued action the Order state will execute.
type intent struct {
	kind   intentKind
	dir    domain.Direction
	qty    decimal.Decimal
	reason domain.CloseReason
}

// OrderExecutor is the submit-then-confirm surface the controller needs.
// Satisfied by oms.Coordinator.
type OrderExecutor interface {
	Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// Config carries the per-symbol trading parameters.
type Config struct {
	Symbol     string
	Leverage   decimal.Decimal
	BaseQty    decimal.Decimal
	FeeRate    decimal.Decimal
	Tick       time.Duration
	WindowSize int
}

// Controller is the finite state machine driving one symbol. It is the sole
// owner of the ladder and the rolling windows; everything it consumes from
// other goroutines arrives through channels or the atomic last-price cell.
type Controller struct {
	cfg      Config
	strat    strategy.Strategy
	windows  *market.TimeframeState
	last     *market.LastPrice
	exec     OrderExecutor
	ladder   *risk.Ladder
	m15      <-chan domain.Bar
	h1       <-chan domain.Bar
	log      *slog.Logger
	onTrade  func(domain.TradeRecord)

	state    State
	dir      domain.Direction
	pending  intent
	trades   []domain.TradeRecord
	realized decimal.Decimal
}

// NewController wires the state machine. m15 and h1 deliver confirmed bars;
// last is the shared live-price cell fed by the ticker stream.
func NewController(
	cfg Config,
	tables risk.Tables,
	strat strategy.Strategy,
	exec OrderExecutor,
	last *market.LastPrice,
	m15, h1 <-chan domain.Bar,
	log *slog.Logger,
) *Controller {
	return &Controller{
		cfg:     cfg,
		strat:   strat,
		windows: market.NewTimeframeState(cfg.WindowSize),
		last:    last,
		exec:    exec,
		ladder:  risk.NewLadder(tables),
		m15:     m15,
		h1:      h1,
		log:     log,
		state:   StateSignal,
	}
}

// OnTrade registers a sink invoked for every closed trade, e.g. a store.
func (c *Controller) OnTrade(fn func(domain.TradeRecord)) { c.onTrade = fn }

// State returns the current machine state.
func (c *Controller) State() State { return c.state }

// Trades returns a copy of all closed trades so far.
func (c *Controller) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(c.trades))
	copy(out, c.trades)
	return out
}

// RealizedPnL returns cumulative realized PnL across closed trades.
func (c *Controller) RealizedPnL() decimal.Decimal { return c.realized }

// Run drives the state machine until the context stops. It must be the
// only goroutine touching the controller.
func (c *Controller) Run(ctx context.Context) {
	c.log.Info("controller starting",
		slog.String("symbol", c.cfg.Symbol),
		slog.String("leverage", c.cfg.Leverage.String()),
		slog.String("base_qty", c.cfg.BaseQty.String()))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopped", slog.String("symbol", c.cfg.Symbol))
			return
		default:
		}

		switch c.state {
		case StateSignal:
			c.stepSignal(ctx)
		case StateOrder:
			c.stepOrder(ctx)
		case StateRisk:
			c.stepRisk(ctx)
		}
	}
}

// stepSignal drains buffered bars and asks the strategy for a verdict. A
// directional verdict while flat queues an open; anything else is a no-op
// tick. With a position already open the state falls through to Risk so a
// restart mid-position cannot strand the machine.
func (c *Controller) stepSignal(ctx context.Context) {
	c.drainBars()

	if c.ladder.Depth() > 0 {
		c.transition(StateRisk)
		return
	}

	sig := c.strat.GenerateSignal(c.windows.M15.Bars(), c.windows.H1.Bars())
	infra.MtxSignals.WithLabelValues(sig.String()).Inc()

	if sig == domain.SignalFlat {
		c.wait(ctx)
		return
	}

	qty, err := c.ladder.NextQty(c.cfg.BaseQty)
	if err != nil {
		// Ladder is empty here, so this cannot happen with a valid table.
		c.log.Error("cannot size opening entry", "error", err)
		c.wait(ctx)
		return
	}

	c.pending = intent{kind: intentOpen, dir: sig.Direction(), qty: qty}
	c.log.Info("signal fired",
		slog.String("symbol", c.cfg.Symbol),
		slog.String("signal", sig.String()),
		slog.String("qty", qty.String()))
	c.transition(StateOrder)
}

// stepRisk checks, in priority order, add-entry, liquidation, and
// take-profit against the latest streamed price.
func (c *Controller) stepRisk(ctx context.Context) {
	price, ok := c.last.Load()
	if !ok {
		c.wait(ctx)
		return
	}

	entryPrice, _ := c.ladder.FirstEntryPrice()

	if c.ladder.ShouldAddEntry(entryPrice, price, c.dir) {
		qty, err := c.ladder.NextQty(c.cfg.BaseQty)
		if err != nil {
			c.queueForcedClose(domain.CloseLadderExhausted, price)
			return
		}
		c.pending = intent{kind: intentAdd, dir: c.dir, qty: qty}
		c.log.Info("reverse threshold crossed, adding layer",
			slog.String("symbol", c.cfg.Symbol),
			slog.Int("depth", c.ladder.Depth()),
			slog.String("price", price.String()),
			slog.String("qty", qty.String()))
		c.transition(StateOrder)
		return
	}

	if c.ladder.CheckLiquidation(price, c.dir, c.cfg.Leverage) {
		c.queueForcedClose(domain.CloseLiquidation, price)
		return
	}

	if c.ladder.CheckTakeProfit(price, c.dir) {
		c.pending = intent{kind: intentClose, dir: c.dir, reason: domain.CloseTakeProfit}
		c.log.Info("trailing take-profit fired",
			slog.String("symbol", c.cfg.Symbol),
			slog.String("price", price.String()),
			slog.Int("depth", c.ladder.Depth()))
		c.transition(StateOrder)
		return
	}

	c.wait(ctx)
}

func (c *Controller) queueForcedClose(reason domain.CloseReason, price decimal.Decimal) {
	infra.MtxForcedCloses.WithLabelValues(string(reason)).Inc()
	c.pending = intent{kind: intentClose, dir: c.dir, reason: reason}
	c.log.Warn("forcing position close",
		slog.String("symbol", c.cfg.Symbol),
		slog.String("reason", string(reason)),
		slog.String("price", price.String()),
		slog.Int("depth", c.ladder.Depth()),
		slog.String("total_qty", c.ladder.TotalQty().String()))
	c.transition(StateOrder)
}

// stepOrder executes the queued intent through the coordinator. A cancelled
// or failed order leaves the ladder untouched; the attempted action is
// treated as not having happened.
func (c *Controller) stepOrder(ctx context.Context) {
	in := c.pending
	c.pending = intent{}

	if in.kind == intentNone {
		c.transition(StateSignal)
		return
	}

	req := domain.OrderRequest{
		Symbol: c.cfg.Symbol,
		Side:   domain.SideFor(in.dir, in.kind == intentClose),
		Qty:    in.qty,
	}
	if in.kind == intentClose {
		req.Qty = c.ladder.TotalQty()
		req.ReduceOnly = true
	}

	res, err := c.exec.Execute(ctx, req)
	if err != nil {
		c.log.Error("order submission failed, abandoning intent",
			slog.String("symbol", c.cfg.Symbol), "error", err)
		c.transition(StateSignal)
		return
	}
	if res.Status != domain.OrderFilled {
		c.log.Warn("order not filled, abandoning intent",
			slog.String("symbol", c.cfg.Symbol),
			slog.String("order_id", res.OrderID),
			slog.String("status", string(res.Status)))
		c.transition(StateSignal)
		return
	}

	fillPrice, ok := c.last.Load()
	if !ok {
		// No streamed price yet; nothing sensible to book the fill at.
		// Should not happen in practice since the signal needed bars.
		c.log.Error("fill confirmed but no last price available",
			slog.String("order_id", res.OrderID))
		c.transition(StateSignal)
		return
	}

	switch in.kind {
	case intentOpen:
		c.ladder.Reset()
		c.dir = in.dir
		if _, err := c.ladder.AddEntry(fillPrice, c.cfg.BaseQty); err != nil {
			c.log.Error("seeding ladder failed", "error", err)
		}
		infra.MtxLadderDepth.Set(float64(c.ladder.Depth()))
		c.log.Info("position opened",
			slog.String("symbol", c.cfg.Symbol),
			slog.String("direction", c.dir.String()),
			slog.String("price", fillPrice.String()))
		c.transition(StateRisk)

	case intentAdd:
		if _, err := c.ladder.AddEntry(fillPrice, c.cfg.BaseQty); err != nil {
			if errors.Is(err, risk.ErrLadderExhausted) {
				c.queueForcedClose(domain.CloseLadderExhausted, fillPrice)
				return
			}
			c.log.Error("adding layer failed", "error", err)
			c.transition(StateSignal)
			return
		}
		infra.MtxLadderDepth.Set(float64(c.ladder.Depth()))
		c.log.Info("layer added",
			slog.String("symbol", c.cfg.Symbol),
			slog.Int("depth", c.ladder.Depth()),
			slog.String("price", fillPrice.String()),
			slog.String("avg_entry", c.ladder.AvgEntryPrice().String()))
		c.transition(StateRisk)

	case intentClose:
		c.closePosition(fillPrice, in.reason)
		c.transition(StateSignal)
	}
}

// closePosition books the trade and discards the ladder. Liquidation PnL is
// the unconditional full loss of the levered notional; every other close is
// marked to the fill with taker fees on both legs.
func (c *Controller) closePosition(exitPrice decimal.Decimal, reason domain.CloseReason) {
	avg := c.ladder.AvgEntryPrice()
	qty := c.ladder.TotalQty()

	var pnl decimal.Decimal
	if reason == domain.CloseLiquidation {
		pnl = qty.Mul(c.cfg.Leverage).Neg()
	} else {
		gross := exitPrice.Sub(avg)
		if c.dir == domain.Short {
			gross = gross.Neg()
		}
		gross = gross.Mul(qty)
		fees := c.cfg.FeeRate.Mul(avg.Mul(qty).Add(exitPrice.Mul(qty)))
		pnl = gross.Sub(fees)
	}

	rec := domain.TradeRecord{
		Symbol:        c.cfg.Symbol,
		Direction:     c.dir,
		AvgEntryPrice: avg,
		ExitPrice:     exitPrice,
		TotalQty:      qty,
		PnL:           pnl,
		Reason:        reason,
		ClosedAt:      time.Now().UTC(),
	}
	c.trades = append(c.trades, rec)
	c.realized = c.realized.Add(pnl)
	if c.onTrade != nil {
		c.onTrade(rec)
	}

	c.ladder.Reset()
	infra.MtxLadderDepth.Set(0)
	infra.MtxRealizedPnL.Set(c.realized.InexactFloat64())

	c.log.Info("position closed",
		slog.String("symbol", c.cfg.Symbol),
		slog.String("direction", rec.Direction.String()),
		slog.String("reason", string(reason)),
		slog.String("avg_entry", avg.String()),
		slog.String("exit", exitPrice.String()),
		slog.String("qty", qty.String()),
		slog.String("pnl", pnl.String()),
		slog.String("realized_total", c.realized.String()))
}

// drainBars moves every already-buffered confirmed bar into the rolling
// windows without blocking.
func (c *Controller) drainBars() {
	for {
		select {
		case b := <-c.m15:
			c.windows.M15.Append(b)
		case b := <-c.h1:
			c.windows.H1.Append(b)
		default:
			return
		}
	}
}

func (c *Controller) transition(next State) {
	if next == c.state {
		return
	}
	infra.MtxStateTransitions.WithLabelValues(string(next)).Inc()
	c.log.Debug("state transition",
		slog.String("symbol", c.cfg.Symbol),
		slog.String("from", string(c.state)),
		slog.String("to", string(next)))
	c.state = next
}

// wait sleeps one tick interval, or less if the context stops.
func (c *Controller) wait(ctx context.Context) {
	select {
	case <-time.After(c.cfg.Tick):
	case <-ctx.Done():
	}
}
