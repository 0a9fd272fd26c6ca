package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const partialSuffix = ".partial"

// Storage keeps uploads for queued extraction jobs in one flat directory.
// Keys are single path elements; writes land under a temporary name and are
// renamed into place, so a worker never opens a half-written upload.
type Storage struct {
	dir string
}

func New(dir string) (*Storage, error) {
	if dir == "" {
		dir = "./data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	final, err := s.resolve(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*"+partialSuffix)
	if err != nil {
		return fmt.Errorf("create upload %s: %w", key, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, readerWithContext{ctx: ctx, r: data}); err != nil {
		return fmt.Errorf("write upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close upload %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("commit upload %s: %w", key, err)
	}
	committed = true
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.WrapError(domain.ErrNotFound, "open upload", err)
	case err != nil:
		return nil, fmt.Errorf("open upload %s: %w", key, err)
	}
	return f, nil
}

// Delete removes an upload; a missing one is not an error.
func (s *Storage) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload %s: %w", key, err)
	}
	return nil
}

func (s *Storage) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") || strings.HasSuffix(key, partialSuffix) {
		return "", domain.WrapError(domain.ErrValidation, "upload key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.dir, key), nil
}

// readerWithContext stops a copy once the request that carries the upload
// is cancelled.
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
