package okx

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Allenwang2004/Alltrader/internal/infra"
	"github.com/Allenwang2004/Alltrader/internal/market"
	"github.com/Allenwang2004/Alltrader/pkg/quant"

	"github.com/gorilla/websocket"
)

// TickerWorker streams the last traded price from the OKX public
// WebSocket into a shared price cell.
type TickerWorker struct {
	worker *infra.WSWorker
	url    string
	symbol string
	last   *market.LastPrice
}

// NewTickerWorker factory.
func NewTickerWorker(wsURL, symbol string, last *market.LastPrice) *TickerWorker {
	w := &TickerWorker{
		url:    wsURL,
		symbol: symbol,
		last:   last,
	}
	w.worker = infra.NewWSWorker(w)
	return w
}

func (w *TickerWorker) Name() string { return "okx-ticker" }
func (w *TickerWorker) URL() string  { return w.url }

func (w *TickerWorker) Connect(ctx context.Context) error {
	w.worker.Start(ctx)
	return nil
}

func (w *TickerWorker) Disconnect() {
	w.worker.Stop()
}

func (w *TickerWorker) Subscribe(ctx context.Context, conn *websocket.Conn) error {
	req := subscribeRequest{
		Op:   "subscribe",
		Args: []subscribeArg{{Channel: "tickers", InstID: w.symbol}},
	}
	b, _ := json.Marshal(req)
	return w.worker.Send(websocket.TextMessage, b)
}

func (w *TickerWorker) HandleMessage(ctx context.Context, msg []byte) {
	if string(msg) == "pong" {
		return
	}

	var resp tickerResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return
	}
	if resp.Arg.Channel != "tickers" || len(resp.Data) == 0 {
		return
	}

	for _, data := range resp.Data {
		if data.InstID != w.symbol {
			continue
		}
		p, err := quant.ParsePriceMicros(data.Last)
		if err != nil {
			slog.Warn("OKX ticker: bad price", "raw", data.Last, "error", err)
			continue
		}
		w.last.StoreMicros(p)
	}
}

func (w *TickerWorker) Keepalive(ctx context.Context, conn *websocket.Conn) error {
	return w.worker.Send(websocket.TextMessage, []byte("ping"))
}
