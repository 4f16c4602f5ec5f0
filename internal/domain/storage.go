package domain

import (
	"context"
	"io"
	"time"
)

// Descriptor describes one stored archive. It is used for discovery,
// ordering and expiry only; the archive body is the source of truth.
type Descriptor struct {
	Name         string
	Key          string
	Size         int64
	LastModified time.Time
}

// Repository stores named archives under a fixed prefix. Names passed in and
// returned are relative to that prefix.
type Repository interface {
	// List returns the archives under the prefix, newest first.
	List(ctx context.Context) ([]Descriptor, error)
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
	Store(ctx context.Context, name string, body io.Reader) error
	Delete(ctx context.Context, name string) error
}
