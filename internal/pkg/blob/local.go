package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Gopher0727/SocialSync/config"
)

// Local keeps objects on disk; the HTTP server exposes Root under BaseURL.
type Local struct {
	root    string
	baseURL string
}

func NewLocal(cfg config.LocalStorage) (*Local, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("storage.local.root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: cfg.Root, baseURL: cfg.BaseURL}, nil
}

// Root returns the directory served as static files.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full := filepath.Join(l.root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	// 先写临时文件再改名，覆盖头像时读者不会看到半截文件
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write object %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write object %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store object %s: %w", p, err)
	}
	return joinURL(l.baseURL, p), nil
}

// Delete is idempotent: a missing object is not an error.
func (l *Local) Delete(ctx context.Context, objectPath string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.root, filepath.FromSlash(p)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object %s: %w", p, err)
	}
	return nil
}
