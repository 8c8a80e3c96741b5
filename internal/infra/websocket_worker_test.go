package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stubHandler struct {
	url        string
	subscribes int32
	frames     int32
}

func (h *stubHandler) Name() string { return "stub" }
func (h *stubHandler) URL() string  { return h.url }
func (h *stubHandler) Subscribe(ctx context.Context, conn *websocket.Conn) error {
	atomic.AddInt32(&h.subscribes, 1)
	return nil
}
func (h *stubHandler) HandleMessage(ctx context.Context, msg []byte) {
	atomic.AddInt32(&h.frames, 1)
}
func (h *stubHandler) Keepalive(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

func wsTestServer(t *testing.T, serve func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	}))
}

func wsURL(httpURL string) string {
	return strings.Replace(httpURL, "http://", "ws://", 1)
}

func TestWSWorker_SubscribesAndDeliversFrames(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"arg":{"channel":"tickers"}}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	h := &stubHandler{url: wsURL(server.URL)}
	worker := NewWSWorker(h)
	worker.ReadTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	worker.Start(ctx)
	time.Sleep(200 * time.Millisecond)
	worker.Stop()

	if atomic.LoadInt32(&h.subscribes) == 0 {
		t.Error("Subscribe was never called")
	}
	if atomic.LoadInt32(&h.frames) == 0 {
		t.Error("no frames reached the handler")
	}
}

func TestWSWorker_StopDoesNotHang(t *testing.T) {
	release := make(chan struct{})
	server := wsTestServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer server.Close()
	defer close(release)

	h := &stubHandler{url: wsURL(server.URL)}
	worker := NewWSWorker(h)

	worker.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop did not return")
	}
}

func TestWSWorker_Send(t *testing.T) {
	received := make(chan []byte, 1)
	server := wsTestServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- msg
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	h := &stubHandler{url: wsURL(server.URL)}
	worker := NewWSWorker(h)

	worker.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	want := []byte(`{"op":"subscribe"}`)
	if err := worker.Send(websocket.TextMessage, want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != string(want) {
			t.Errorf("server got %s, want %s", msg, want)
		}
	case <-time.After(time.Second):
		t.Error("server never received the frame")
	}

	worker.Stop()
}

func TestWSWorker_SendWhileDisconnected(t *testing.T) {
	worker := NewWSWorker(&stubHandler{url: "ws://127.0.0.1:0"})
	if err := worker.Send(websocket.TextMessage, []byte("x")); err == nil {
		t.Error("expected error sending on a disconnected worker")
	}
}
