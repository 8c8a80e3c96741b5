package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// Fill is one simulated execution.
type Fill struct {
	OrderID string
	Symbol  string
	Side    domain.Side
	Price   decimal.Decimal
	Qty     decimal.Decimal
	Ts      time.Time
}

// SimExecution fills every market order instantly at the current mark
// price, with no slippage. It backs the backtester and pre-production runs.
type SimExecution struct {
	mu     sync.Mutex
	mark   map[string]decimal.Decimal
	orders map[string]domain.OrderStatus
	fills  []Fill
}

func NewSimExecution() *SimExecution {
	return &SimExecution{
		mark:   make(map[string]decimal.Decimal),
		orders: make(map[string]domain.OrderStatus),
	}
}

// SetMarkPrice updates the price the next order fills at.
func (s *SimExecution) SetMarkPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mark[symbol] = price
}

func (s *SimExecution) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.mark[req.Symbol]
	if !ok {
		return "", fmt.Errorf("%w: no mark price for %s", ErrExecution, req.Symbol)
	}

	id := uuid.NewString()
	s.orders[id] = domain.OrderFilled
	s.fills = append(s.fills, Fill{
		OrderID: id,
		Symbol:  req.Symbol,
		Side:    req.Side,
		Price:   price,
		Qty:     req.Qty,
		Ts:      time.Now(),
	})

	slog.Debug("sim execution: filled",
		slog.String("order_id", id),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.String("price", price.String()),
		slog.String("qty", req.Qty.String()))
	return id, nil
}

func (s *SimExecution) GetOrderStatus(ctx context.Context, symbol, orderID string) (domain.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.orders[orderID]
	if !ok {
		return domain.OrderFailed, fmt.Errorf("%w: unknown order %s", ErrExecution, orderID)
	}
	return status, nil
}

func (s *SimExecution) CancelOrder(ctx context.Context, symbol, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: unknown order %s", ErrExecution, orderID)
	}
	if status == domain.OrderFilled {
		return fmt.Errorf("%w: order %s already filled", ErrExecution, orderID)
	}
	s.orders[orderID] = domain.OrderCancelled
	return nil
}

// Fills returns a copy of every simulated execution so far.
func (s *SimExecution) Fills() []Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Fill, len(s.fills))
	copy(out, s.fills)
	return out
}
