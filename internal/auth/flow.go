package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
)

var (
	ErrAuthFailed   = errors.New("authentication failed")
	ErrAuthExpired  = errors.New("authentication session expired")
	ErrAuthTimedOut = errors.New("authentication timed out")
)

const (
	defaultPollInterval = 2 * time.Second
	defaultAuthTimeout  = 5 * time.Minute
)

// BrowserFlow asks the API for a GitHub sign-in URL, opens it, and polls until
// the browser side completes.
type BrowserFlow struct {
	// BaseURL is the versioned API root, e.g. https://api.hoist.dev/v1.
	BaseURL      string
	HTTPClient   *http.Client
	Out          io.Writer
	PollInterval time.Duration
	Timeout      time.Duration
	// OpenURL defaults to the system browser.
	OpenURL  func(string) error
	NewState func() string
}

type authURLResponse struct {
	URL string `json:"url"`
}

type pollResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
}

func (f BrowserFlow) Login(ctx context.Context) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
	if base == "" {
		return "", errors.New("auth base url is required")
	}
	if f.HTTPClient == nil {
		f.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if f.Out == nil {
		f.Out = io.Discard
	}
	if f.PollInterval <= 0 {
		f.PollInterval = defaultPollInterval
	}
	if f.Timeout <= 0 {
		f.Timeout = defaultAuthTimeout
	}
	if f.OpenURL == nil {
		f.OpenURL = browser.OpenURL
	}
	if f.NewState == nil {
		f.NewState = uuid.NewString
	}

	state := f.NewState()

	q := url.Values{}
	q.Set("state", state)
	q.Set("source", "cli")
	var ar authURLResponse
	if _, err := f.getJSON(ctx, base+"/auth/github?"+q.Encode(), &ar); err != nil {
		return "", fmt.Errorf("fetch auth url: %w", err)
	}
	if strings.TrimSpace(ar.URL) == "" {
		return "", errors.New("auth url missing in response")
	}

	fmt.Fprintln(f.Out, "Opening browser for GitHub authentication...")
	fmt.Fprintln(f.Out, "If the browser does not open, please visit:")
	fmt.Fprintf(f.Out, "\n%s\n\n", ar.URL)
	if err := f.OpenURL(ar.URL); err != nil {
		fmt.Fprintf(f.Out, "Could not open browser: %v\n", err)
	}
	fmt.Fprintln(f.Out, "Waiting for authentication...")

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	pollURL := base + "/auth/poll?" + url.Values{"state": {state}}.Encode()
	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	for {
		var pr pollResponse
		status, err := f.getJSON(ctx, pollURL, &pr)
		switch {
		case status == http.StatusNotFound:
			return "", ErrAuthExpired
		case err != nil:
			if ctx.Err() != nil {
				return "", f.doneErr(ctx)
			}
			return "", err
		case pr.Status == "completed" && pr.Token != "":
			return pr.Token, nil
		case pr.Status == "failed":
			return "", ErrAuthFailed
		case pr.Status == "expired":
			return "", ErrAuthExpired
		}

		select {
		case <-ctx.Done():
			return "", f.doneErr(ctx)
		case <-ticker.C:
		}
	}
}

func (f BrowserFlow) doneErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrAuthTimedOut
	}
	return ctx.Err()
}

func (f BrowserFlow) getJSON(ctx context.Context, u string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
