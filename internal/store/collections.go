package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

// Collections stores reports, consultations and gallery items as JSON arrays
// under fixed keys of a BlobStore. It implements domain.LabStore.
//
// Read-modify-write operations are serialized within the process. Writers in
// other processes are not coordinated: the last full-list write wins.
type Collections struct {
	blobs  BlobStore
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewCollections wraps a blob store.
func NewCollections(blobs BlobStore, logger *logrus.Logger) *Collections {
	return &Collections{blobs: blobs, logger: logger}
}

// Blobs returns the underlying blob store.
func (c *Collections) Blobs() BlobStore {
	return c.blobs
}

// loadList decodes a JSON array. Absent keys and malformed JSON both yield
// an empty list; malformed data is logged.
func loadList[T any](ctx context.Context, c *Collections, key string) ([]T, error) {
	raw, ok, err := c.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	out := []T{}
	if !ok || len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.WithFields(logrus.Fields{
			"key":   key,
			"bytes": len(raw),
		}).WithError(err).Warn("Stored collection is malformed, treating as empty")
		return []T{}, nil
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func saveList[T any](ctx context.Context, c *Collections, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.blobs.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Load returns all saved reports, most recent first.
func (c *Collections) Load(ctx context.Context) ([]domain.DiagnosticReport, error) {
	return loadList[domain.DiagnosticReport](ctx, c, KeyReports)
}

// SaveAll overwrites the report list.
func (c *Collections) SaveAll(ctx context.Context, reports []domain.DiagnosticReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return saveList(ctx, c, KeyReports, reports)
}

// AppendOne prepends a report so that iteration is most recent first.
func (c *Collections) AppendOne(ctx context.Context, report domain.DiagnosticReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reports, err := loadList[domain.DiagnosticReport](ctx, c, KeyReports)
	if err != nil {
		return err
	}
	reports = append([]domain.DiagnosticReport{report}, reports...)
	return saveList(ctx, c, KeyReports, reports)
}

// DeleteByID removes every report with the id.
func (c *Collections) DeleteByID(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reports, err := loadList[domain.DiagnosticReport](ctx, c, KeyReports)
	if err != nil {
		return err
	}
	kept := reports[:0]
	for _, r := range reports {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(reports) {
		return fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	return saveList(ctx, c, KeyReports, kept)
}

// SeedIfAbsent writes reports only when the reports key has never been set.
// It reports whether anything was written.
func (c *Collections) SeedIfAbsent(ctx context.Context, reports []domain.DiagnosticReport) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok, err := c.blobs.Get(ctx, KeyReports)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", KeyReports, err)
	}
	if ok {
		return false, nil
	}
	return true, saveList(ctx, c, KeyReports, reports)
}

// LoadConsultations returns the consultation queue, most recent first.
func (c *Collections) LoadConsultations(ctx context.Context) ([]domain.ConsultationRequest, error) {
	return loadList[domain.ConsultationRequest](ctx, c, KeyConsultations)
}

// SaveConsultations overwrites the consultation queue.
func (c *Collections) SaveConsultations(ctx context.Context, requests []domain.ConsultationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return saveList(ctx, c, KeyConsultations, requests)
}

// LoadGallery returns gallery items, most recent first.
func (c *Collections) LoadGallery(ctx context.Context) ([]domain.GalleryItem, error) {
	return loadList[domain.GalleryItem](ctx, c, KeyGallery)
}

// SaveGallery overwrites the gallery.
func (c *Collections) SaveGallery(ctx context.Context, items []domain.GalleryItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return saveList(ctx, c, KeyGallery, items)
}

// Ping checks the underlying blob store.
func (c *Collections) Ping(ctx context.Context) error {
	return c.blobs.Ping(ctx)
}

// Close closes the underlying blob store.
func (c *Collections) Close() error {
	return c.blobs.Close()
}
