package okx

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/infra"

	"github.com/gorilla/websocket"
)

// KlineWorker streams confirmed candles from the OKX business WebSocket.
// Unconfirmed (still-forming) candles are dropped; each channel only ever
// carries closed bars.
type KlineWorker struct {
	worker *infra.WSWorker
	url    string
	symbol string
	m15    chan<- domain.Bar
	h1     chan<- domain.Bar
}

// NewKlineWorker factory. m15 and h1 receive confirmed 15-minute and
// 1-hour bars respectively.
func NewKlineWorker(wsURL, symbol string, m15, h1 chan<- domain.Bar) *KlineWorker {
	w := &KlineWorker{
		url:    wsURL,
		symbol: symbol,
		m15:    m15,
		h1:     h1,
	}
	w.worker = infra.NewWSWorker(w)
	return w
}

func (w *KlineWorker) Name() string { return "okx-kline" }
func (w *KlineWorker) URL() string  { return w.url }

func (w *KlineWorker) Connect(ctx context.Context) error {
	w.worker.Start(ctx)
	return nil
}

func (w *KlineWorker) Disconnect() {
	w.worker.Stop()
}

func (w *KlineWorker) Subscribe(ctx context.Context, conn *websocket.Conn) error {
	req := subscribeRequest{
		Op: "subscribe",
		Args: []subscribeArg{
			{Channel: "candle15m", InstID: w.symbol},
			{Channel: "candle1H", InstID: w.symbol},
		},
	}
	b, _ := json.Marshal(req)
	return w.worker.Send(websocket.TextMessage, b)
}

func (w *KlineWorker) HandleMessage(ctx context.Context, msg []byte) {
	if string(msg) == "pong" {
		return
	}

	var resp candleResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return
	}

	var out chan<- domain.Bar
	switch resp.Arg.Channel {
	case "candle15m":
		out = w.m15
	case "candle1H":
		out = w.h1
	default:
		return
	}

	for _, row := range resp.Data {
		// Field 8 is the confirm flag; "1" marks a closed candle.
		if len(row) < 9 || row[8] != "1" {
			continue
		}
		bar, err := parseCandleRow(row)
		if err != nil {
			slog.Warn("OKX kline: bad candle row", "channel", resp.Arg.Channel, "error", err)
			continue
		}
		select {
		case out <- bar:
		default:
			slog.Warn("OKX kline: channel full, dropping bar", "channel", resp.Arg.Channel, "ts", bar.Ts)
		}
	}
}

func (w *KlineWorker) Keepalive(ctx context.Context, conn *websocket.Conn) error {
	return w.worker.Send(websocket.TextMessage, []byte("ping"))
}
