// Package archive packages a project directory into a zip payload for upload.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/mgeovany/hoist/internal/ignore"
)

// Options tunes where and how the archive is written.
type Options struct {
	// TempDir holds the archive file. Defaults to os.TempDir().
	TempDir string
	Logger  *slog.Logger
	// Now stamps the temp file name. Defaults to time.Now.
	Now func() time.Time
}

// Archive is a finished payload on disk. It is owned by one deploy and must be
// removed with Remove once the deploy ends.
type Archive struct {
	Path      string
	Size      int64
	FileCount int
	// Entries lists member paths (slash-separated) in walk order.
	Entries []string

	once      sync.Once
	removeErr error
}

// Open re-reads the payload from disk.
func (a *Archive) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// Remove deletes the archive file. It is safe to call more than once and
// treats an already missing file as success.
func (a *Archive) Remove() error {
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.removeErr = err
		}
	})
	return a.removeErr
}

// TempName returns hoist-deploy-<unix-ms>-<uuid>.zip.
func TempName(now time.Time) string {
	return fmt.Sprintf("hoist-deploy-%d-%s.zip", now.UnixMilli(), uuid.NewString())
}

// Create walks sourceDir, skips everything rules excludes, and writes the rest
// to a new zip file compressed at the best deflate level. File contents are
// streamed; nothing is buffered whole. On any error the partial file is
// removed.
func Create(ctx context.Context, sourceDir string, rules ignore.RuleSet, opts Options) (*Archive, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", sourceDir)
	}

	tmpDir := opts.TempDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	outPath := filepath.Join(tmpDir, TempName(now()))
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	a := &Archive{Path: outPath}
	fail := func(err error) (*Archive, error) {
		_ = f.Close()
		if rmErr := a.Remove(); rmErr != nil {
			logger.Debug("remove partial archive", "path", outPath, "err", rmErr)
		}
		return nil, err
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	w := &walker{
		ctx:    ctx,
		root:   sourceDir,
		rules:  rules,
		zw:     zw,
		self:   absOrEmpty(outPath),
		logger: logger,
	}
	if err := w.walk(sourceDir); err != nil {
		_ = zw.Close()
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finalize archive: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync archive: %w", err))
	}
	st, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}

	a.Size = st.Size()
	a.Entries = w.entries
	a.FileCount = len(w.entries)
	logger.Debug("archive created", "path", outPath, "files", a.FileCount, "bytes", a.Size)
	return a, nil
}

type walker struct {
	ctx     context.Context
	root    string
	rules   ignore.RuleSet
	zw      *zip.Writer
	self    string
	logger  *slog.Logger
	entries []string
}

func (w *walker) walk(dir string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	// os.ReadDir sorts by name, which keeps member order stable.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(w.root, fullPath)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(fullPath)
			if err != nil {
				w.logger.Debug("skip dangling symlink", "path", rel, "err", err)
				continue
			}
			if target.IsDir() {
				w.logger.Debug("skip symlinked directory", "path", rel)
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if w.rules.Match(rel, true) {
				continue
			}
			if err := w.walk(fullPath); err != nil {
				return err
			}
		case mode.IsRegular():
			if w.rules.Match(rel, false) {
				continue
			}
			if w.self != "" && absOrEmpty(fullPath) == w.self {
				continue
			}
			if err := w.add(fullPath, rel); err != nil {
				return err
			}
		default:
			// sockets, devices, pipes
			w.logger.Debug("skip special file", "path", rel)
		}
	}
	return nil
}

func (w *walker) add(fullPath, rel string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(fullPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate

	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("add %s: %w", rel, err)
	}
	w.entries = append(w.entries, rel)
	return nil
}

func absOrEmpty(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	return abs
}
