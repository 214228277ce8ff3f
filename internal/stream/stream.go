// Package stream subscribes to the server-push deployment progress feed.
//
// Two transports are provided: SSE, which must carry the credential in the
// query string, and WebSocket, which sends it in the Authorization header.
package stream

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrClosed is reported when the server ends the feed without an error.
var ErrClosed = errors.New("stream closed by server")

// Target identifies one deployment feed.
type Target struct {
	// BaseURL is the CLI API root, e.g. https://api.hoist.dev/v1/cli.
	BaseURL   string
	MachineID string
	StreamID  string
	Token     string
}

func (t Target) path() string {
	return strings.TrimRight(t.BaseURL, "/") +
		"/service/" + url.PathEscape(t.MachineID) +
		"/deploy/stream/" + url.PathEscape(t.StreamID)
}

// Message is one raw event body or a terminal transport error. After a
// message with Err set the channel is closed.
type Message struct {
	Data []byte
	Err  error
}

// Subscriber opens a feed. A connection failure is returned directly; faults
// after that arrive as a final Message.
type Subscriber interface {
	Subscribe(ctx context.Context, target Target) (<-chan Message, error)
}

// Redact hides the token query parameter of u for logging.
func Redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "<invalid url>"
	}
	q := parsed.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

// deliver sends m unless ctx is done.
func deliver(ctx context.Context, ch chan<- Message, m Message) bool {
	select {
	case ch <- m:
		return true
	case <-ctx.Done():
		return false
	}
}
