package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", b.ClientCount(), want)
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	srv := httptest.NewServer(b)
	defer srv.Close()

	c1 := dial(t, srv)
	defer func() { _ = c1.Close() }()
	c2 := dial(t, srv)
	defer func() { _ = c2.Close() }()

	waitForClients(t, b, 2)

	sent := Update{
		Poller:     "api",
		OK:         true,
		StatusCode: 200,
		LatencyMs:  12,
		At:         time.Now().UTC(),
	}
	b.Publish(sent)

	for i, conn := range []*websocket.Conn{c1, c2} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		var got Update
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("client %d unmarshal: %v", i, err)
		}
		if got.Poller != "api" || !got.OK || got.StatusCode != 200 {
			t.Errorf("client %d update = %+v, want poller api, ok, status 200", i, got)
		}
	}
}

func TestBroadcaster_FailureUpdate(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	defer func() { _ = conn.Close() }()
	waitForClients(t, b, 1)

	b.Publish(Update{Poller: "feed", Error: "request failed", Attempt: 2, At: time.Now().UTC()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Update
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.OK || got.Error != "request failed" || got.Attempt != 2 {
		t.Errorf("update = %+v, want failure with attempt 2", got)
	}
}

func TestBroadcaster_DisconnectPrunesClient(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, b, 1)

	_ = conn.Close()
	waitForClients(t, b, 0)

	// publishing with no subscribers is a no-op
	b.Publish(Update{Poller: "api", OK: true, At: time.Now().UTC()})
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(testLogger())

	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	defer func() { _ = conn.Close() }()
	waitForClients(t, b, 1)

	b.Close()
	b.Close() // idempotent

	if got := b.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d after Close, want 0", got)
	}

	// the peer sees the connection die
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() succeeded after Close, want error")
	}

	// new subscribers are rejected after Close
	c2, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		defer func() { _ = c2.Close() }()
		_ = c2.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := c2.ReadMessage(); err == nil {
			t.Error("post-Close subscriber kept a live connection")
		}
	}
}

func TestBroadcaster_SlowClientDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	defer func() { _ = conn.Close() }()
	waitForClients(t, b, 1)

	// never read from conn; overflow the send buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*4; i++ {
			b.Publish(Update{Poller: "api", OK: true, At: time.Now().UTC()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow client")
	}
}
