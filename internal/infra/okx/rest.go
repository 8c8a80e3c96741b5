package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/execution"
	"github.com/Allenwang2004/Alltrader/internal/infra"

	"github.com/shopspring/decimal"
)

const (
	pathCandles     = "/api/v5/market/candles"
	pathPlaceOrder  = "/api/v5/trade/order"
	pathOrderDetail = "/api/v5/trade/order"
	pathCancelOrder = "/api/v5/trade/cancel-order"
)

// Client talks to the OKX V5 REST API. It implements both the execution
// port and the historical candle source.
type Client struct {
	baseURL       string
	signer        *Signer
	hc            *http.Client
	orderLimiter  *infra.RateLimiter
	marketLimiter *infra.RateLimiter
}

// NewClient creates an authenticated OKX REST client from config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.API.OKX.RestURL, "/"),
		signer:  NewSigner(cfg.API.OKX.APIKey, cfg.API.OKX.APISecret, cfg.API.OKX.Passphrase),
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
		orderLimiter:  infra.GetOKXOrderLimiter(),
		marketLimiter: infra.GetOKXMarketLimiter(),
	}
}

// Close wipes API credentials from memory.
func (c *Client) Close() {
	c.signer.Wipe()
}

// PlaceMarketOrder submits a cross-margin market order and returns the
// exchange order ID.
func (c *Client) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	if err := c.orderLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}

	body := placeOrderRequest{
		InstID:     req.Symbol,
		TdMode:     "cross",
		Side:       strings.ToLower(string(req.Side)),
		OrdType:    "market",
		Sz:         req.Qty.String(),
		ReduceOnly: req.ReduceOnly,
	}

	var resp restResponse[placeOrderData]
	if err := c.doSigned(ctx, http.MethodPost, pathPlaceOrder, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("%w: place order returned no data", execution.ErrExecution)
	}
	d := resp.Data[0]
	if d.SCode != "" && d.SCode != "0" {
		return "", fmt.Errorf("%w: place order rejected (%s): %s", execution.ErrExecution, d.SCode, d.SMsg)
	}
	return d.OrdID, nil
}

// GetOrderStatus maps the OKX order state onto the coordinator-level status.
func (c *Client) GetOrderStatus(ctx context.Context, symbol, orderID string) (domain.OrderStatus, error) {
	if err := c.orderLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}

	path := pathOrderDetail + "?instId=" + url.QueryEscape(symbol) + "&ordId=" + url.QueryEscape(orderID)

	var resp restResponse[orderDetailData]
	if err := c.doSigned(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("%w: order %s not found", execution.ErrExecution, orderID)
	}

	switch resp.Data[0].State {
	case "filled":
		return domain.OrderFilled, nil
	case "canceled", "mmp_canceled":
		return domain.OrderCancelled, nil
	case "live", "partially_filled":
		return domain.OrderPending, nil
	default:
		return "", fmt.Errorf("%w: unknown order state %q", execution.ErrExecution, resp.Data[0].State)
	}
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := c.orderLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}

	body := cancelOrderRequest{InstID: symbol, OrdID: orderID}

	var resp restResponse[cancelOrderData]
	if err := c.doSigned(ctx, http.MethodPost, pathCancelOrder, body, &resp); err != nil {
		return err
	}
	if len(resp.Data) == 0 {
		return fmt.Errorf("%w: cancel returned no data", execution.ErrExecution)
	}
	if d := resp.Data[0]; d.SCode != "" && d.SCode != "0" {
		return fmt.Errorf("%w: cancel rejected (%s): %s", execution.ErrExecution, d.SCode, d.SMsg)
	}
	return nil
}

// FetchBars loads up to limit confirmed candles, oldest first.
// OKX returns rows newest first, so the slice is reversed on the way out.
func (c *Client) FetchBars(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Bar, error) {
	if err := c.marketLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}

	bar, err := barParam(interval)
	if err != nil {
		return nil, err
	}

	path := pathCandles + "?instId=" + url.QueryEscape(symbol) +
		"&bar=" + bar + "&limit=" + strconv.Itoa(limit)

	var resp restResponse[[]string]
	if err := c.doPublic(ctx, path, &resp); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		b, err := parseCandleRow(resp.Data[i])
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// barParam maps the internal interval onto the OKX bar identifier.
// OKX uses uppercase suffixes from the hour up.
func barParam(interval domain.Interval) (string, error) {
	switch interval {
	case domain.Interval1m:
		return "1m", nil
	case domain.Interval15m:
		return "15m", nil
	case domain.Interval1h:
		return "1H", nil
	default:
		return "", fmt.Errorf("okx: unsupported interval %q", interval)
	}
}

// parseCandleRow converts one positional candle array into a Bar.
func parseCandleRow(row []string) (domain.Bar, error) {
	if len(row) < 6 {
		return domain.Bar{}, fmt.Errorf("okx: short candle row (%d fields)", len(row))
	}

	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("okx: bad candle timestamp %q: %w", row[0], err)
	}

	fields := make([]decimal.Decimal, 5)
	for i := 0; i < 5; i++ {
		d, err := decimal.NewFromString(row[i+1])
		if err != nil {
			return domain.Bar{}, fmt.Errorf("okx: bad candle field %q: %w", row[i+1], err)
		}
		fields[i] = d
	}

	return domain.Bar{
		Ts:     time.UnixMilli(ms).UTC(),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func (c *Client) doSigned(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", execution.ErrExecution, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}
	for k, v := range c.signer.GenerateHeaders(method, path, string(payload)) {
		req.Header.Set(k, v)
	}

	return c.do(req, out)
}

func (c *Client) doPublic(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", execution.ErrExecution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: HTTP %d: %s", execution.ErrExecution, resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", execution.ErrExecution, err)
	}

	return checkEnvelope(out)
}

type enveloped interface {
	envelope() (code, msg string)
}

func (r restResponse[T]) envelope() (string, string) { return r.Code, r.Msg }

// checkEnvelope rejects responses whose top-level code is non-zero.
func checkEnvelope(out any) error {
	e, ok := out.(enveloped)
	if !ok {
		return nil
	}
	if code, msg := e.envelope(); code != "" && code != "0" {
		return fmt.Errorf("%w: API error (%s): %s", execution.ErrExecution, code, msg)
	}
	return nil
}
