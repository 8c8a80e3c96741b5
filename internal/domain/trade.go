package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionEntry is one rung of the position ladder. Immutable once created.
type PositionEntry struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// CloseReason explains why a position was closed.
type CloseReason string

const (
	CloseTakeProfit      CloseReason = "take_profit"
	CloseLiquidation     CloseReason = "liquidation"
	CloseLadderExhausted CloseReason = "ladder_exhausted"
	CloseFinal           CloseReason = "final_close"
)

// TradeRecord is an append-only record of one closed position.
type TradeRecord struct {
	Symbol        string
	Direction     Direction
	AvgEntryPrice decimal.Decimal
	ExitPrice     decimal.Decimal
	TotalQty      decimal.Decimal
	PnL           decimal.Decimal
	Reason        CloseReason
	ClosedAt      time.Time
}

// EquityCurvePoint is one backtest equity sample, one per source bar.
type EquityCurvePoint struct {
	Ts            time.Time
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalPnL      decimal.Decimal
}
