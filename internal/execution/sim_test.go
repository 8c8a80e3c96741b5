package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Allenwang2004/Alltrader/internal/domain"
)

func TestSimExecution_FillsAtMarkPrice(t *testing.T) {
	sim := NewSimExecution()
	sim.SetMarkPrice("BTC-USDT-SWAP", decimal.RequireFromString("50000"))

	id, err := sim.PlaceMarketOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC-USDT-SWAP",
		Side:   domain.SideBuy,
		Qty:    decimal.RequireFromString("2"),
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty order id")
	}

	status, err := sim.GetOrderStatus(context.Background(), "BTC-USDT-SWAP", id)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status != domain.OrderFilled {
		t.Fatalf("status = %s, want %s", status, domain.OrderFilled)
	}

	fills := sim.Fills()
	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	if !fills[0].Price.Equal(decimal.RequireFromString("50000")) {
		t.Errorf("fill price = %s, want 50000", fills[0].Price)
	}
	if !fills[0].Qty.Equal(decimal.RequireFromString("2")) {
		t.Errorf("fill qty = %s, want 2", fills[0].Qty)
	}
}

func TestSimExecution_NoMarkPriceFails(t *testing.T) {
	sim := NewSimExecution()

	_, err := sim.PlaceMarketOrder(context.Background(), domain.OrderRequest{
		Symbol: "ETH-USDT-SWAP",
		Side:   domain.SideBuy,
		Qty:    decimal.New(1, 0),
	})
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("err = %v, want ErrExecution", err)
	}
}

func TestSimExecution_UnknownOrder(t *testing.T) {
	sim := NewSimExecution()

	if _, err := sim.GetOrderStatus(context.Background(), "BTC-USDT-SWAP", "nope"); !errors.Is(err, ErrExecution) {
		t.Errorf("GetOrderStatus err = %v, want ErrExecution", err)
	}
	if err := sim.CancelOrder(context.Background(), "BTC-USDT-SWAP", "nope"); !errors.Is(err, ErrExecution) {
		t.Errorf("CancelOrder err = %v, want ErrExecution", err)
	}
}

func TestSimExecution_CancelFilledRejected(t *testing.T) {
	sim := NewSimExecution()
	sim.SetMarkPrice("BTC-USDT-SWAP", decimal.New(100, 0))

	id, err := sim.PlaceMarketOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC-USDT-SWAP",
		Side:   domain.SideSell,
		Qty:    decimal.New(1, 0),
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if err := sim.CancelOrder(context.Background(), "BTC-USDT-SWAP", id); !errors.Is(err, ErrExecution) {
		t.Fatalf("cancel of filled order: err = %v, want ErrExecution", err)
	}
}
