// Package config resolves hoist settings from the environment and optional
// dotenv files.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL      = "https://api.hoist.dev"
	DefaultAuthTimeout = 5 * time.Minute

	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Config holds everything read from HOIST_* variables.
type Config struct {
	BaseURL         string
	StreamTransport string
	TempDir         string
	NoSpinner       bool
	NoColor         bool
	Debug           bool
	AuthTimeout     time.Duration
	Archive         ArchiveMirror
}

// ArchiveMirror configures the optional copy of each deploy archive to an
// S3-compatible bucket. Empty Bucket disables it.
type ArchiveMirror struct {
	Bucket   string
	Endpoint string
	Region   string
	UseSSL   bool
}

func (m ArchiveMirror) Enabled() bool {
	return strings.TrimSpace(m.Bucket) != "" && strings.TrimSpace(m.Endpoint) != ""
}

// Dir returns ~/.config/hoist.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hoist"), nil
}

// LoadDotEnv loads optional dotenv files. Variables already present in the
// environment win. Missing files are ignored.
func LoadDotEnv() {
	// godotenv.Load(a, b) stops on the first missing file, so try separately.
	if dir, err := Dir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, "config.env"))
	}
	_ = godotenv.Load(".hoist.env")
}

// Load reads dotenv files and then the environment.
func Load() (Config, error) {
	LoadDotEnv()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	base, err := apiURLFrom(getenv("HOIST_API_URL"))
	if err != nil {
		return Config{}, err
	}

	transport := strings.ToLower(strings.TrimSpace(getenv("HOIST_STREAM_TRANSPORT")))
	switch transport {
	case "", TransportSSE:
		transport = TransportSSE
	case "ws", TransportWebSocket:
		transport = TransportWebSocket
	default:
		return Config{}, fmt.Errorf("invalid HOIST_STREAM_TRANSPORT: %s (want sse or websocket)", transport)
	}

	timeout := DefaultAuthTimeout
	if v := strings.TrimSpace(getenv("HOIST_AUTH_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid HOIST_AUTH_TIMEOUT: %q", v)
		}
		timeout = d
	}

	tmp := strings.TrimSpace(getenv("HOIST_TMPDIR"))
	if tmp == "" {
		tmp = os.TempDir()
	}

	useSSL := true
	if v := strings.TrimSpace(getenv("HOIST_ARCHIVE_USE_SSL")); v != "" {
		useSSL = IsTruthy(v)
	}

	return Config{
		BaseURL:         base,
		StreamTransport: transport,
		TempDir:         tmp,
		NoSpinner:       IsTruthy(getenv("HOIST_NO_SPINNER")),
		NoColor:         IsTruthy(getenv("HOIST_NO_COLOR")) || strings.TrimSpace(getenv("NO_COLOR")) != "",
		Debug:           IsTruthy(getenv("HOIST_DEBUG")),
		AuthTimeout:     timeout,
		Archive: ArchiveMirror{
			Bucket:   strings.TrimSpace(getenv("HOIST_ARCHIVE_BUCKET")),
			Endpoint: strings.TrimSpace(getenv("HOIST_ARCHIVE_ENDPOINT")),
			Region:   strings.TrimSpace(getenv("HOIST_ARCHIVE_REGION")),
			UseSSL:   useSSL,
		},
	}, nil
}

// APIURL is the CLI API root, {base}/v1/cli.
func (c Config) APIURL() string {
	return c.BaseURL + "/v1/cli"
}

// VersionedURL is {base}/v1, used by the auth endpoints.
func (c Config) VersionedURL() string {
	return c.BaseURL + "/v1"
}

func apiURLFrom(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultAPIURL, nil
	}

	u, err := url.Parse(v)
	if err != nil {
		return "", fmt.Errorf("invalid HOIST_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid HOIST_API_URL scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid HOIST_API_URL host")
	}

	// The stream credential travels in the query string.
	if u.Scheme == "http" && !IsLoopbackHost(host) {
		return "", fmt.Errorf("refusing insecure HOIST_API_URL (http without loopback host): %s", v)
	}

	return strings.TrimRight(v, "/"), nil
}

func IsLoopbackHost(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// IsTruthy accepts 1/true/yes/on.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
