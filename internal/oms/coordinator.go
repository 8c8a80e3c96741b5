package oms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/execution"
	"github.com/Allenwang2004/Alltrader/internal/infra"
)

// ErrSubmissionFailed means every submission attempt failed. The caller
// must treat the order as not placed.
var ErrSubmissionFailed = errors.New("oms: order submission failed after retries")

// Config controls retry and fill-confirmation behavior.
type Config struct {
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	FillTimeout  time.Duration
}

// Coordinator turns a market-order intent into a confirmed fill or a
// definitive failure. Transient exchange errors are absorbed here; the
// trading loop above only ever sees Filled, Cancelled, or
// ErrSubmissionFailed.
type Coordinator struct {
	port    execution.Port
	cfg     Config
	breaker *infra.Breaker
	log     *slog.Logger
}

// New creates a coordinator around an execution port.
func New(port execution.Port, cfg Config, log *slog.Logger) *Coordinator {
	return &Coordinator{
		port:    port,
		cfg:     cfg,
		breaker: infra.NewBreaker("order-submit"),
		log:     log,
	}
}

// Submit places a market order, retrying up to MaxRetries times with a
// fixed delay between attempts. It returns the exchange order ID on the
// first successful attempt.
func (c *Coordinator) Submit(ctx context.Context, req domain.OrderRequest) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if !c.breaker.Allow() {
			lastErr = errors.New("circuit breaker open")
			c.log.Warn("order submission blocked by circuit breaker",
				slog.String("symbol", req.Symbol),
				slog.Int("attempt", attempt))
		} else {
			orderID, err := c.port.PlaceMarketOrder(ctx, req)
			if err == nil {
				c.breaker.RecordSuccess()
				infra.MtxOrders.WithLabelValues(string(req.Side), "submitted").Inc()
				c.log.Info("order submitted",
					slog.String("symbol", req.Symbol),
					slog.String("side", string(req.Side)),
					slog.String("qty", req.Qty.String()),
					slog.Bool("reduce_only", req.ReduceOnly),
					slog.String("order_id", orderID),
					slog.Int("attempt", attempt))
				return orderID, nil
			}

			lastErr = err
			c.breaker.RecordFailure()
			c.log.Warn("order submission attempt failed",
				slog.String("symbol", req.Symbol),
				slog.String("side", string(req.Side)),
				slog.Int("attempt", attempt),
				slog.Int("max_retries", c.cfg.MaxRetries),
				"error", err)
		}

		if attempt < c.cfg.MaxRetries {
			infra.MtxOrderRetries.Inc()
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, ctx.Err())
			}
		}
	}

	infra.MtxOrders.WithLabelValues(string(req.Side), "failed").Inc()
	return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, lastErr)
}

// AwaitFill polls order status until the order fills, a terminal non-fill
// state is observed, or FillTimeout elapses. On timeout it attempts a
// best-effort cancel and reports Cancelled; cancel failure is logged, not
// fatal. A context stop mid-poll still triggers the cancel attempt so no
// open order is orphaned.
func (c *Coordinator) AwaitFill(ctx context.Context, symbol, orderID string) domain.OrderStatus {
	deadline := time.NewTimer(c.cfg.FillTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()

	for {
		status, err := c.port.GetOrderStatus(ctx, symbol, orderID)
		if err != nil {
			c.log.Warn("order status poll failed",
				slog.String("order_id", orderID), "error", err)
		} else if status == domain.OrderFilled {
			infra.MtxOrders.WithLabelValues("", "filled").Inc()
			c.log.Info("order filled", slog.String("order_id", orderID))
			return domain.OrderFilled
		} else if status.Terminal() {
			c.log.Warn("order reached terminal non-fill state",
				slog.String("order_id", orderID),
				slog.String("status", string(status)))
			return domain.OrderCancelled
		}

		select {
		case <-poll.C:
		case <-deadline.C:
			c.log.Warn("fill timeout, cancelling order",
				slog.String("order_id", orderID),
				slog.Duration("timeout", c.cfg.FillTimeout))
			c.cancelBestEffort(symbol, orderID)
			infra.MtxOrders.WithLabelValues("", "timeout").Inc()
			return domain.OrderCancelled
		case <-ctx.Done():
			c.log.Warn("stop requested mid-poll, cancelling order",
				slog.String("order_id", orderID))
			c.cancelBestEffort(symbol, orderID)
			return domain.OrderCancelled
		}
	}
}

// Execute is the full submit-then-confirm cycle.
func (c *Coordinator) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	orderID, err := c.Submit(ctx, req)
	if err != nil {
		return domain.OrderResult{Status: domain.OrderFailed}, err
	}
	status := c.AwaitFill(ctx, req.Symbol, orderID)
	return domain.OrderResult{OrderID: orderID, Status: status}, nil
}

// cancelBestEffort uses its own context so a cancel still goes out after
// the caller's context is stopped.
func (c *Coordinator) cancelBestEffort(symbol, orderID string) {
	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.port.CancelOrder(cctx, symbol, orderID); err != nil {
		c.log.Error("best-effort cancel failed, order may remain open",
			slog.String("order_id", orderID), "error", err)
	}
}
