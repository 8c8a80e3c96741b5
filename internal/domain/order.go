package domain

import (
	"github.com/shopspring/decimal"
)

// Side is the order side on the wire.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFor returns the order side that grows a position in the given
// direction. Pass reduce=true for the closing side.
func SideFor(d Direction, reduce bool) Side {
	if (d == Long) != reduce {
		return SideBuy
	}
	return SideSell
}

// OrderStatus is the coordinator-level view of an order's lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderFailed    OrderStatus = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderFailed
}

// OrderRequest is a market-order intent handed to the execution port.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Qty        decimal.Decimal
	ReduceOnly bool
}

// OrderResult is the confirmed outcome of a submission.
type OrderResult struct {
	OrderID string
	Status  OrderStatus
}
