// Package storage keeps uploaded document files on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/diewo77/go-onboarding/internal/apperr"
)

// Local stores blobs under a root directory. Put overwrites existing keys.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// path maps a slash-separated key to a file below root.
func (l *Local) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

// Put writes r to key. The file is written to a temporary name first and
// renamed into place, so readers never see a partial upload.
func (l *Local) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	dst, err := l.path(key)
	if err != nil {
		return 0, apperr.New(apperr.CodeValidation, "invalid file name", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, apperr.Unavailable(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, apperr.Unavailable(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, apperr.Unavailable(err)
	}
	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, apperr.Unavailable(err)
	}
	return n, nil
}

// Open returns the blob stored at key.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	src, err := l.path(key)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "file not found", err)
	}
	f, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.New(apperr.CodeNotFound, "file not found", err)
	}
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	return f, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
