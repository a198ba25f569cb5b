package progresshub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/n5dmr/trbo-xnl/pkg/clone"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
)

func TestNew(t *testing.T) {
	hub := New(logger.New(logger.Config{Level: "error"}))
	if hub == nil {
		t.Fatal("New returned nil")
	}
}

func TestHub_Run_StopsOnCancel(t *testing.T) {
	hub := New(logger.New(logger.Config{Level: "error"}))
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestHub_Publish_NoClientsDoesNotBlock(t *testing.T) {
	hub := New(logger.New(logger.Config{Level: "error"}))
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	hub.Publish(clone.Progress{Fraction: 0.5, Phase: "writing"})
}

func TestHub_Publish_DeliversToConnectedClient(t *testing.T) {
	hub := New(logger.New(logger.Config{Level: "error"}))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	// Give the hub a moment to process the registration before publishing.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 connected client, got %d", hub.ClientCount())
	}

	hub.Publish(clone.Progress{Fraction: 0.75, Phase: "validating CRC"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if !strings.Contains(string(msg), "validating CRC") {
		t.Fatalf("expected message to contain phase, got %q", msg)
	}
}
