package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// SSE reads a text/event-stream feed. EventSource-style clients cannot set
// headers, so the credential travels as the token query parameter; the API
// URL is required to be https for non-loopback hosts.
type SSE struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// URL builds the feed address including the encoded token.
func (s SSE) URL(t Target) string {
	return t.path() + "?" + url.Values{"token": {t.Token}}.Encode()
}

func (s SSE) Subscribe(ctx context.Context, t Target) (<-chan Message, error) {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	u := s.URL(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", redactErr(err))
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	logger.Debug("stream connect", "transport", "sse", "url", Redact(u))
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream connect: %w", redactErr(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream connect: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	ch := make(chan Message)
	go readSSE(ctx, resp.Body, ch, logger)
	return ch, nil
}

// readSSE dispatches the joined data lines of each event on a blank line.
// Comment, id, event and retry fields are ignored.
func readSSE(ctx context.Context, body io.ReadCloser, ch chan<- Message, logger *slog.Logger) {
	defer close(ch)
	defer body.Close()

	r := bufio.NewReader(body)
	var data []string
	for {
		line, err := r.ReadString('\n')
		if line != "" || err == nil {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				if len(data) > 0 {
					if !deliver(ctx, ch, Message{Data: []byte(strings.Join(data, "\n"))}) {
						return
					}
					data = nil
				}
			case strings.HasPrefix(line, ":"):
				// comment
			default:
				field, value, _ := strings.Cut(line, ":")
				if field == "data" {
					data = append(data, strings.TrimPrefix(value, " "))
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			logger.Debug("stream ended", "transport", "sse", "err", err)
			deliver(ctx, ch, Message{Err: err})
			return
		}
	}
}

// redactErr strips the token from the URL carried by *url.Error.
func redactErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		clone := *ue
		clone.URL = Redact(ue.URL)
		return &clone
	}
	return err
}
