package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local stores blobs under a single directory on disk. Names may contain
// forward slashes for grouping; anything escaping the root is rejected.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates a disk-backed store rooted at dir. baseURL prefixes the
// URLs handed out for uploaded blobs; when empty, file:// URLs are used.
func NewLocal(dir, baseURL string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	absolute, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	return &Local{root: absolute, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) resolve(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(l.root, cleaned), nil
}

// Upload writes the blob and returns its URL.
func (l *Local) Upload(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", name, err)
	}
	return l.URL(name), nil
}

// Download reads a blob back.
func (l *Local) Download(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

// Delete removes a blob; absent blobs are ignored.
func (l *Local) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

// URL returns the blob's public URL.
func (l *Local) URL(name string) string {
	cleaned := strings.TrimLeft(filepath.ToSlash(filepath.Clean(filepath.FromSlash(name))), "/")
	if l.baseURL == "" {
		return "file://" + filepath.Join(l.root, filepath.FromSlash(cleaned))
	}
	return l.baseURL + "/" + cleaned
}

// Path returns the blob's location on disk.
func (l *Local) Path(name string) string {
	path, err := l.resolve(name)
	if err != nil {
		return ""
	}
	return path
}
