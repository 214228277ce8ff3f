package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.BaseURL != DefaultAPIURL {
		t.Fatalf("base = %q", cfg.BaseURL)
	}
	if cfg.APIURL() != DefaultAPIURL+"/v1/cli" {
		t.Fatalf("api = %q", cfg.APIURL())
	}
	if cfg.VersionedURL() != DefaultAPIURL+"/v1" {
		t.Fatalf("versioned = %q", cfg.VersionedURL())
	}
	if cfg.StreamTransport != TransportSSE {
		t.Fatalf("transport = %q", cfg.StreamTransport)
	}
	if cfg.AuthTimeout != DefaultAuthTimeout {
		t.Fatalf("timeout = %v", cfg.AuthTimeout)
	}
	if cfg.TempDir == "" {
		t.Fatalf("expected temp dir default")
	}
	if cfg.Archive.Enabled() {
		t.Fatalf("mirror should be disabled by default")
	}
}

func TestFromEnv_APIURLValidation(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "https://api.example.com/", want: "https://api.example.com"},
		{in: "http://localhost:3000", want: "http://localhost:3000"},
		{in: "http://127.0.0.1:8080/", want: "http://127.0.0.1:8080"},
		{in: "http://[::1]:8080", want: "http://[::1]:8080"},
		{in: "http://api.example.com", wantErr: "refusing insecure"},
		{in: "ftp://api.example.com", wantErr: "scheme"},
		{in: "https://", wantErr: "host"},
	}
	for _, tc := range cases {
		cfg, err := FromEnv(envMap(map[string]string{"HOIST_API_URL": tc.in}))
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("%q: err = %v, want containing %q", tc.in, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if cfg.BaseURL != tc.want {
			t.Fatalf("%q: base = %q, want %q", tc.in, cfg.BaseURL, tc.want)
		}
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"HOIST_STREAM_TRANSPORT": "WebSocket",
		"HOIST_AUTH_TIMEOUT":     "30s",
		"HOIST_TMPDIR":           "/var/tmp/hoist",
		"HOIST_NO_SPINNER":       "1",
		"NO_COLOR":               "x",
		"HOIST_DEBUG":            "yes",
		"HOIST_ARCHIVE_BUCKET":   "deploys",
		"HOIST_ARCHIVE_ENDPOINT": "localhost:9000",
		"HOIST_ARCHIVE_USE_SSL":  "false",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.StreamTransport != TransportWebSocket {
		t.Fatalf("transport = %q", cfg.StreamTransport)
	}
	if cfg.AuthTimeout != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.AuthTimeout)
	}
	if cfg.TempDir != "/var/tmp/hoist" {
		t.Fatalf("tmp = %q", cfg.TempDir)
	}
	if !cfg.NoSpinner || !cfg.NoColor || !cfg.Debug {
		t.Fatalf("flags not parsed: %+v", cfg)
	}
	if !cfg.Archive.Enabled() || cfg.Archive.UseSSL {
		t.Fatalf("archive mirror = %+v", cfg.Archive)
	}
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	if _, err := FromEnv(envMap(map[string]string{"HOIST_STREAM_TRANSPORT": "grpc"})); err == nil {
		t.Fatalf("expected transport error")
	}
	if _, err := FromEnv(envMap(map[string]string{"HOIST_AUTH_TIMEOUT": "soon"})); err == nil {
		t.Fatalf("expected timeout error")
	}
	if _, err := FromEnv(envMap(map[string]string{"HOIST_AUTH_TIMEOUT": "-1s"})); err == nil {
		t.Fatalf("expected timeout error for negative duration")
	}
}
