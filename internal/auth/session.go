// Package auth owns the API credential: where it is stored, how it is cached
// for one invocation, and how a new one is obtained.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrNoCredential is returned when no credential is stored and no login flow
// is available to obtain one.
var ErrNoCredential = errors.New("not authenticated: run `hoist login`")

// Flow obtains a fresh credential interactively.
type Flow interface {
	Login(ctx context.Context) (string, error)
}

// Session caches the credential for one invocation. It is populated on first
// read from the store or after a login, and cleared by Logout or
// Reauthenticate.
type Session struct {
	store  Store
	flow   Flow
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	token string
}

type SessionOption func(*Session)

func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession builds a session. flow may be nil, in which case a missing
// credential is reported as ErrNoCredential.
func NewSession(store Store, flow Flow, opts ...SessionOption) *Session {
	s := &Session{
		store:  store,
		flow:   flow,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a usable credential, running the login flow when none is
// stored or the stored one has expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	tok, ok, err := s.store.Load()
	if err != nil {
		s.logger.Debug("credential store read failed", "err", err)
	}
	if ok && Expired(tok, s.now()) {
		s.logger.Debug("stored credential expired")
		ok = false
	}
	if ok {
		s.token = tok
		return tok, nil
	}

	return s.loginLocked(ctx)
}

// Reauthenticate drops the current credential and runs the login flow again.
// It is used after the API rejects a credential with 401.
func (s *Session) Reauthenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	if err := s.store.Delete(); err != nil {
		s.logger.Debug("credential store delete failed", "err", err)
	}
	return s.loginLocked(ctx)
}

// Login always runs the login flow and stores the result.
func (s *Session) Login(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

// Logout clears the cached and stored credential.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return s.store.Delete()
}

// Stored reports whether an unexpired credential is cached or stored,
// without logging in.
func (s *Session) Stored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return true
	}
	tok, ok, _ := s.store.Load()
	return ok && !Expired(tok, s.now())
}

func (s *Session) loginLocked(ctx context.Context) (string, error) {
	if s.flow == nil {
		return "", ErrNoCredential
	}
	tok, err := s.flow.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("authentication: %w", err)
	}
	if tok == "" {
		return "", ErrNoCredential
	}
	if err := s.store.Save(tok); err != nil {
		// still usable for this invocation
		s.logger.Warn("could not persist credential", "err", err)
	}
	s.token = tok
	return tok, nil
}
