package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// WebSocket reads the feed over a websocket, one JSON event per frame, with
// the credential in the Authorization header.
type WebSocket struct {
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// URL maps the feed path onto ws:// or wss://.
func (w WebSocket) URL(t Target) string {
	u := t.path()
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

func (w WebSocket) Subscribe(ctx context.Context, t Target) (<-chan Message, error) {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	u := w.URL(t)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+t.Token)

	logger.Debug("stream connect", "transport", "websocket", "url", u)
	conn, resp, err := dialer.DialContext(ctx, u, h)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream connect: http %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stream connect: %w", err)
	}

	ch := make(chan Message)
	go readWebSocket(ctx, conn, ch, logger)
	return ch, nil
}

func readWebSocket(ctx context.Context, conn *websocket.Conn, ch chan<- Message, logger *slog.Logger) {
	defer close(ch)
	defer conn.Close()

	// unblocks ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrClosed
			}
			logger.Debug("stream ended", "transport", "websocket", "err", err)
			deliver(ctx, ch, Message{Err: err})
			return
		}
		if !deliver(ctx, ch, Message{Data: data}) {
			return
		}
	}
}
