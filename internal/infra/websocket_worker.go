package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSHandler supplies the exchange-specific half of a websocket worker:
// where to dial, what to send after connecting, and how to consume frames.
type WSHandler interface {
	// Name identifies the stream in logs.
	Name() string

	// URL is the endpoint to dial.
	URL() string

	// Subscribe sends the channel subscriptions after a (re)connect.
	Subscribe(ctx context.Context, conn *websocket.Conn) error

	// HandleMessage consumes one raw frame.
	HandleMessage(ctx context.Context, msg []byte)

	// Keepalive is invoked on the ping cadence while connected.
	Keepalive(ctx context.Context, conn *websocket.Conn) error
}

// WSWorker owns one websocket connection for the lifetime of the process.
// It redials with exponential backoff on any failure and resubscribes, so
// handlers only ever see a connected stream.
type WSWorker struct {
	handler WSHandler

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func NewWSWorker(handler WSHandler) *WSWorker {
	return &WSWorker{
		handler:      handler,
		ReadTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
	}
}

// Start launches the dial-read-redial loop. It returns immediately.
func (w *WSWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop tears down the connection and waits for the loop to exit.
func (w *WSWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.dropConn()
	w.wg.Wait()
}

func (w *WSWorker) run(ctx context.Context) {
	defer w.wg.Done()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.dial(ctx); err != nil {
			delay := ReconnectDelay(attempt)
			slog.Warn("websocket connect failed",
				slog.String("worker", w.handler.Name()),
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", delay),
				slog.Any("error", err))
			attempt++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		w.readLoop(ctx)
	}
}

func (w *WSWorker) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", "alltrader/1.0")

	conn, _, err := dialer.DialContext(ctx, w.handler.URL(), header)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if err := w.handler.Subscribe(ctx, conn); err != nil {
		w.dropConn()
		return fmt.Errorf("subscribe: %w", err)
	}

	if w.PingInterval > 0 {
		go w.keepaliveLoop(ctx)
	}

	slog.Info("websocket connected", slog.String("worker", w.handler.Name()))
	return nil
}

// readLoop pumps frames into the handler until the connection dies. The
// read deadline bounds how long a silent connection survives.
func (w *WSWorker) readLoop(ctx context.Context) {
	for {
		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("websocket read failed",
					slog.String("worker", w.handler.Name()),
					slog.Any("error", err))
			}
			w.dropConn()
			return
		}

		w.handler.HandleMessage(ctx, msg)
	}
}

func (w *WSWorker) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			c := w.conn
			w.mu.RUnlock()
			if c == nil {
				return
			}
			if err := w.handler.Keepalive(ctx, c); err != nil {
				slog.Warn("websocket keepalive failed",
					slog.String("worker", w.handler.Name()),
					slog.Any("error", err))
				w.dropConn()
				return
			}
		}
	}
}

// Send writes one frame. Writes are serialized so handler goroutines and
// the keepalive loop never interleave frames.
func (w *WSWorker) Send(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	c := w.conn
	w.mu.RUnlock()

	if c == nil {
		return fmt.Errorf("websocket %s not connected", w.handler.Name())
	}
	return c.WriteMessage(msgType, data)
}

func (w *WSWorker) dropConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
