package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mgeovany/hoist/internal/archive"
	"github.com/mgeovany/hoist/internal/config"
	"github.com/mgeovany/hoist/internal/ignore"
)

func testArchive(t *testing.T) *archive.Archive {
	t.Helper()
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "index.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := archive.Create(context.Background(), src, ignore.New(nil), archive.Options{TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = a.Remove() })
	return a
}

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestCredentials_PrefersHoistKeys(t *testing.T) {
	creds := Credentials(env(map[string]string{
		"HOIST_ARCHIVE_ACCESS_KEY": "AK",
		"HOIST_ARCHIVE_SECRET_KEY": "SK",
	}))
	v, err := creds.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.AccessKeyID != "AK" || v.SecretAccessKey != "SK" {
		t.Fatalf("creds = %+v", v)
	}
}

func TestCredentials_FallsBackToAWSEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "aws-ak")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "aws-sk")
	creds := Credentials(env(map[string]string{"HOIST_ARCHIVE_ACCESS_KEY": "only-half"}))
	v, err := creds.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.AccessKeyID != "aws-ak" {
		t.Fatalf("creds = %+v", v)
	}
}

func TestNew_RequiresBucketAndEndpoint(t *testing.T) {
	if _, err := New(config.ArchiveMirror{Bucket: "b"}, nil); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}

func TestKey(t *testing.T) {
	a := &archive.Archive{Path: filepath.Join("tmp", "hoist-deploy-1-abc.zip")}
	if got := Key(a); got != "hoist/archives/hoist-deploy-1-abc.zip" {
		t.Fatalf("Key = %q", got)
	}
}

func TestPut(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		auth   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path, auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(config.ArchiveMirror{
		Bucket:   "deploys",
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
	}, credentials.NewStaticV4("AK", "SK", ""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := testArchive(t)
	loc, err := m.Put(context.Background(), a)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if loc != "s3://deploys/"+Key(a) {
		t.Fatalf("location = %q", loc)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/deploys/"+Key(a) {
		t.Fatalf("request = %s %s", method, path)
	}
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256") {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestPut_ServerRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))
	defer srv.Close()

	m, err := New(config.ArchiveMirror{
		Bucket:   "deploys",
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
	}, credentials.NewStaticV4("AK", "SK", ""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Put(context.Background(), testArchive(t)); err == nil {
		t.Fatalf("expected error")
	}
}
