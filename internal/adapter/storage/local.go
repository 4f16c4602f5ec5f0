package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/semmidev/mongovault/internal/domain"
)

// LocalStorage keeps archives as files in one directory.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid archive name %q", name)
	}
	return filepath.Join(l.basePath, name), nil
}

// Store writes body to a temporary file and renames it into place, so a
// failed transfer never leaves a partial archive under name.
func (l *LocalStorage) Store(ctx context.Context, name string, body io.Reader) error {
	destPath, err := l.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.basePath, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close dest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move into place: %w", err)
	}
	return nil
}

func (l *LocalStorage) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return f, nil
}

func (l *LocalStorage) List(_ context.Context) ([]domain.Descriptor, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var archives []domain.Descriptor
	for _, entry := range entries {
		if entry.IsDir() || !domain.IsArchiveName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}
		archives = append(archives, domain.Descriptor{
			Name:         entry.Name(),
			Key:          filepath.Join(l.basePath, entry.Name()),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	sortNewestFirst(archives)
	return archives, nil
}

func (l *LocalStorage) Delete(_ context.Context, name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, name)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// sortNewestFirst orders by modification time, newest first; ties fall back
// to name so the order is stable.
func sortNewestFirst(archives []domain.Descriptor) {
	sort.Slice(archives, func(i, j int) bool {
		a, b := archives[i], archives[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Name > b.Name
	})
}
