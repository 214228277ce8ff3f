package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "hoist"
	keyringUser    = "token"
)

// Store persists the API credential between invocations.
type Store interface {
	Load() (token string, ok bool, err error)
	Save(token string) error
	Delete() error
}

// KeyringStore keeps the credential in the OS keyring and falls back to a
// 0600 file when no keyring backend is available.
type KeyringStore struct {
	Service  string
	User     string
	FilePath string
}

// DefaultTokenPath is ~/.config/hoist/token.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hoist", keyringUser), nil
}

// NewKeyringStore returns a store using the default keyring entry and file.
func NewKeyringStore() (*KeyringStore, error) {
	p, err := DefaultTokenPath()
	if err != nil {
		return nil, err
	}
	return &KeyringStore{Service: keyringService, User: keyringUser, FilePath: p}, nil
}

func (s *KeyringStore) Load() (string, bool, error) {
	// 1) Prefer OS keyring.
	v, err := keyring.Get(s.service(), s.user())
	if err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true, nil
	}

	// 2) Fallback: token file.
	if s.FilePath == "" {
		return "", false, nil
	}
	b, ferr := os.ReadFile(s.FilePath)
	if ferr != nil {
		if errors.Is(ferr, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read token file: %w", ferr)
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", false, nil
	}
	return tok, true, nil
}

func (s *KeyringStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	if err := keyring.Set(s.service(), s.user(), token); err == nil {
		_ = s.removeFile()
		return nil
	}

	if s.FilePath == "" {
		return errors.New("no keyring available and no token file configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.FilePath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.FilePath, []byte(token+"\n"), 0o600)
}

// Delete clears both the keyring entry and the fallback file. A missing entry
// or an unavailable keyring backend is not an error.
func (s *KeyringStore) Delete() error {
	_ = keyring.Delete(s.service(), s.user())
	return s.removeFile()
}

func (s *KeyringStore) removeFile() error {
	if s.FilePath == "" {
		return nil
	}
	if err := os.Remove(s.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *KeyringStore) service() string {
	if s.Service == "" {
		return keyringService
	}
	return s.Service
}

func (s *KeyringStore) user() string {
	if s.User == "" {
		return keyringUser
	}
	return s.User
}
