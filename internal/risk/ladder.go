package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// ErrLadderExhausted reports that every configured layer is already filled.
// It is an expected outcome, not a failure: the caller must force-close the
// position at market.
var ErrLadderExhausted = errors.New("risk: ladder exhausted")

// refCutoffDepth is the ladder index at which the take-profit reference
// switches from the full weighted average to the first/last weighted
// average. Kept exactly as the original schedule defines it; whether the
// cutoff is intentional smoothing is an open question upstream.
const refCutoffDepth = 6

// Ladder owns the layered entries of one open position: when to average
// down, when the trailing take-profit fires, and when the position is past
// the liquidation threshold. All methods are pure functions of ladder state
// and inputs; no I/O, no clock.
//
// A Ladder must only ever be touched by the single goroutine that owns the
// position.
type Ladder struct {
	tables  Tables
	entries []domain.PositionEntry

	trailingPeak decimal.Decimal
	peakArmed    bool
}

// NewLadder creates an empty ladder for one position lifetime.
func NewLadder(tables Tables) *Ladder {
	return &Ladder{tables: tables}
}

// Depth returns the number of filled layers.
func (l *Ladder) Depth() int { return len(l.entries) }

// Entries returns a copy of the filled layers.
func (l *Ladder) Entries() []domain.PositionEntry {
	out := make([]domain.PositionEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// TotalQty returns the summed quantity of all entries, the position's open
// notional in base units.
func (l *Ladder) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.entries {
		total = total.Add(e.Qty)
	}
	return total
}

// FirstEntryPrice returns the seed entry price. ok is false while flat.
func (l *Ladder) FirstEntryPrice() (price decimal.Decimal, ok bool) {
	if len(l.entries) == 0 {
		return decimal.Zero, false
	}
	return l.entries[0].Price, true
}

// TrailingPeak exposes the armed trailing high-water mark, for logging.
func (l *Ladder) TrailingPeak() (peak decimal.Decimal, armed bool) {
	return l.trailingPeak, l.peakArmed
}

// AddEntry fills the next layer at the given price. The layer quantity is
// baseQty scaled by the layer's multiplier. Returns ErrLadderExhausted once
// every configured layer is filled.
func (l *Ladder) AddEntry(price, baseQty decimal.Decimal) (decimal.Decimal, error) {
	idx := len(l.entries)
	if idx >= len(l.tables.Layers) {
		return decimal.Zero, ErrLadderExhausted
	}

	qty := baseQty.Mul(l.tables.Layers[idx].Multiplier)
	l.entries = append(l.entries, domain.PositionEntry{Price: price, Qty: qty})
	return qty, nil
}

// NextQty returns the quantity the next layer would fill, without mutating
// the ladder. Lets the trading loop size an order before the fill confirms.
func (l *Ladder) NextQty(baseQty decimal.Decimal) (decimal.Decimal, error) {
	idx := len(l.entries)
	if idx >= len(l.tables.Layers) {
		return decimal.Zero, ErrLadderExhausted
	}
	return baseQty.Mul(l.tables.Layers[idx].Multiplier), nil
}

// ShouldAddEntry decides whether the next layer's reverse threshold is
// crossed. entryPrice is the first entry price of the position; the
// configured reverse fractions are cumulative from it. An empty ladder
// always accepts its seed entry.
func (l *Ladder) ShouldAddEntry(entryPrice, currentPrice decimal.Decimal, dir domain.Direction) bool {
	if len(l.entries) == 0 {
		return true
	}

	idx := len(l.entries)
	if idx >= len(l.tables.Layers) {
		return false
	}

	adverse := adverseFraction(entryPrice, currentPrice, dir)
	return adverse.GreaterThanOrEqual(l.tables.Layers[idx].ReverseFraction)
}

// ReferencePrice is the price the take-profit PnL is measured against: the
// quantity-weighted average of all entries up to the cutoff depth, then the
// weighted average of only the first and last entries.
func (l *Ladder) ReferencePrice() decimal.Decimal {
	if len(l.entries) == 0 {
		return decimal.Zero
	}
	if len(l.entries)-1 <= refCutoffDepth {
		return l.AvgEntryPrice()
	}

	first, last := l.entries[0], l.entries[len(l.entries)-1]
	notional := first.Price.Mul(first.Qty).Add(last.Price.Mul(last.Qty))
	return notional.Div(first.Qty.Add(last.Qty))
}

// AvgEntryPrice is the quantity-weighted average of every entry.
func (l *Ladder) AvgEntryPrice() decimal.Decimal {
	if len(l.entries) == 0 {
		return decimal.Zero
	}
	notional := decimal.Zero
	for _, e := range l.entries {
		notional = notional.Add(e.Price.Mul(e.Qty))
	}
	return notional.Div(l.TotalQty())
}

// CheckTakeProfit ratchets the trailing stop and reports whether to close.
// The first time the PnL fraction reaches the depth's trigger the peak is
// latched and the stop is armed without exiting. From then on the peak only
// moves up, and the exit fires once the fraction retraces below
// peak - trailing while still at or above the trigger.
func (l *Ladder) CheckTakeProfit(currentPrice decimal.Decimal, dir domain.Direction) bool {
	if len(l.entries) == 0 {
		return false
	}

	rule := l.tables.TakeProfit[len(l.entries)-1]
	pnl := pnlFraction(currentPrice, l.ReferencePrice(), dir)

	if pnl.LessThan(rule.Trigger) {
		return false
	}

	if !l.peakArmed {
		l.trailingPeak = pnl
		l.peakArmed = true
		return false
	}

	if pnl.GreaterThan(l.trailingPeak) {
		l.trailingPeak = pnl
	}

	return pnl.LessThanOrEqual(l.trailingPeak.Sub(rule.Trailing))
}

// CheckLiquidation reports whether the average entry has moved against the
// position by more than 1/leverage. The boundary itself is exclusive:
// exactly 1/leverage is not yet liquidated.
func (l *Ladder) CheckLiquidation(currentPrice decimal.Decimal, dir domain.Direction, leverage decimal.Decimal) bool {
	if len(l.entries) == 0 || !leverage.IsPositive() {
		return false
	}

	adverse := adverseFraction(l.AvgEntryPrice(), currentPrice, dir)
	return adverse.GreaterThan(decimal.New(1, 0).Div(leverage))
}

// UnrealizedPnL values the open position at currentPrice against the
// take-profit reference price, without the trailing-stop gate.
func (l *Ladder) UnrealizedPnL(currentPrice decimal.Decimal, dir domain.Direction) decimal.Decimal {
	if len(l.entries) == 0 {
		return decimal.Zero
	}

	diff := currentPrice.Sub(l.ReferencePrice())
	if dir == domain.Short {
		diff = diff.Neg()
	}
	return diff.Mul(l.TotalQty())
}

// Reset discards all entries and the trailing state. Only legal when the
// position transitions to flat.
func (l *Ladder) Reset() {
	l.entries = l.entries[:0]
	l.trailingPeak = decimal.Zero
	l.peakArmed = false
}

// adverseFraction is the against-position move from ref to current:
// (ref-current)/ref for longs, (current-ref)/ref for shorts.
func adverseFraction(ref, current decimal.Decimal, dir domain.Direction) decimal.Decimal {
	if ref.IsZero() {
		return decimal.Zero
	}
	diff := ref.Sub(current)
	if dir == domain.Short {
		diff = diff.Neg()
	}
	return diff.Div(ref)
}

// pnlFraction is the in-favor move from ref to current.
func pnlFraction(current, ref decimal.Decimal, dir domain.Direction) decimal.Decimal {
	if ref.IsZero() {
		return decimal.Zero
	}
	diff := current.Sub(ref)
	if dir == domain.Short {
		diff = diff.Neg()
	}
	return diff.Div(ref)
}
