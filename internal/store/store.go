// Package store persists the laboratory's collections as JSON blobs in a
// string-keyed store. Several blob backends are provided: in-memory,
// SQLite, PostgreSQL (lib/pq) and Redis.
package store

import (
	"context"
	"errors"
)

// Blob keys of the persisted collections.
const (
	KeyReports       = "reports"
	KeyConsultations = "consultations"
	KeyGallery       = "gallery"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store is closed")

// BlobStore is a string-keyed blob store.
type BlobStore interface {
	// Get returns the value and true, or nil and false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
