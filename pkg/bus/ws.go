package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// subscribeRequest is the client→server message naming the subjects a
// dashboard connection wants to observe: subscribe/unsubscribe by subject
// string.
type subscribeRequest struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
}

// WSHandler upgrades HTTP connections to WebSocket and streams bus
// messages for whatever subjects the client subscribes to. One Go process
// owns one WSHandler; it never touches the durable store, matching
// this design's framing of the realtime bus as a diagnostic, best-effort
// channel.
type WSHandler struct {
	bus          Subscriber
	writeTimeout time.Duration
}

// NewWSHandler constructs a WSHandler fronting the given bus.
func NewWSHandler(b Subscriber, writeTimeout time.Duration) *WSHandler {
	return &WSHandler{bus: b, writeTimeout: writeTimeout}
}

// ServeHTTP upgrades the request and blocks for the lifetime of the
// connection: a read loop processing subscribe requests alongside
// per-subscription forwarding goroutines.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("bus: websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	ctx := r.Context()

	var mu sync.Mutex
	cancels := make(map[string]func())
	defer func() {
		mu.Lock()
		for _, cancel := range cancels {
			cancel()
		}
		mu.Unlock()
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		switch req.Type {
		case "subscribe":
			ch, cancel := h.bus.Subscribe(req.Subject)
			mu.Lock()
			cancels[req.Subject] = cancel
			mu.Unlock()
			go h.forward(ctx, conn, ch)
		case "unsubscribe":
			mu.Lock()
			if cancel, ok := cancels[req.Subject]; ok {
				cancel()
				delete(cancels, req.Subject)
			}
			mu.Unlock()
		}
	}
}

func (h *WSHandler) forward(ctx context.Context, conn *websocket.Conn, ch <-chan []byte) {
	for payload := range ch {
		wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			return
		}
	}
}
