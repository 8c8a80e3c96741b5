package execution

import (
	"context"
	"errors"

	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// ErrExecution marks transport or auth failures talking to the exchange.
// The order coordinator retries these; nothing above it ever sees one.
var ErrExecution = errors.New("execution: exchange request failed")

// Port is the exchange order surface the trading core depends on. The core
// never touches wire formats; adapters map exchange payloads onto this.
type Port interface {
	// PlaceMarketOrder submits a market order and returns the exchange
	// order ID.
	PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (string, error)

	// GetOrderStatus maps the exchange's view of the order onto the
	// coordinator-level status.
	GetOrderStatus(ctx context.Context, symbol, orderID string) (domain.OrderStatus, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
