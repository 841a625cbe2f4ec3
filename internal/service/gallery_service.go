package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

// Caption and category used when the image could not be analyzed.
const (
	UnanalyzedCaption  = "Clinical image (AI analysis unavailable)"
	UnanalyzedCategory = "Uncategorized"
)

// GalleryService stores clinical images and asks the AI to caption them.
type GalleryService struct {
	store    domain.LabStore
	analyzer domain.ImageAnalyzer
	timeout  time.Duration
	events   EventPublisher
	logger   *logrus.Logger
	now      func() time.Time
	mu       sync.Mutex
}

// NewGalleryService creates the service. A nil analyzer stores images
// without captions.
func NewGalleryService(store domain.LabStore, analyzer domain.ImageAnalyzer, timeout time.Duration, events EventPublisher, logger *logrus.Logger) *GalleryService {
	if timeout <= 0 {
		timeout = defaultInsightTimeout
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &GalleryService{
		store:    store,
		analyzer: analyzer,
		timeout:  timeout,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Search returns items whose caption or category contains query.
func (s *GalleryService) Search(ctx context.Context, query string) ([]domain.GalleryItem, error) {
	items, err := s.store.LoadGallery(ctx)
	if err != nil {
		return nil, domain.WrapLabError(domain.ErrStorage, "failed to load gallery", err)
	}
	out := make([]domain.GalleryItem, 0, len(items))
	for _, item := range items {
		if item.Matches(query) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Upload stores an image and captions it. An analysis failure is logged and
// the image is stored with AIAnalyzed unset.
func (s *GalleryService) Upload(ctx context.Context, data []byte, mimeType string) (domain.GalleryItem, error) {
	if len(data) == 0 {
		return domain.GalleryItem{}, domain.NewValidationError("image", "image is empty", nil)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.GalleryItem{}, domain.NewValidationError("image", "file is not an image", mimeType)
	}

	item := domain.GalleryItem{
		ID:       uuid.New().String(),
		URL:      DataURL(mimeType, data),
		Caption:  UnanalyzedCaption,
		Category: UnanalyzedCategory,
		Date:     s.now().Format(domain.DateLayout),
	}

	if s.analyzer != nil {
		actx, cancel := context.WithTimeout(ctx, s.timeout)
		desc, err := s.analyzer.DescribeImage(actx, data, mimeType)
		cancel()
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("Image analysis failed, saving without caption")
		case desc == nil || strings.TrimSpace(desc.Caption) == "":
			s.logger.Warn("Image analysis returned no caption, saving without caption")
		default:
			item.Caption = strings.TrimSpace(desc.Caption)
			if c := strings.TrimSpace(desc.Category); c != "" {
				item.Category = c
			}
			item.AIAnalyzed = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.store.LoadGallery(ctx)
	if err != nil {
		return domain.GalleryItem{}, domain.WrapLabError(domain.ErrStorage, "failed to load gallery", err)
	}
	items = append([]domain.GalleryItem{item}, items...)
	if err := s.store.SaveGallery(ctx, items); err != nil {
		return domain.GalleryItem{}, domain.WrapLabError(domain.ErrStorage, "failed to save gallery", err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":     item.ID,
		"category":    item.Category,
		"ai_analyzed": item.AIAnalyzed,
		"bytes":       len(data),
	}).Info("Gallery image stored")
	s.events.Publish(Event{Type: EventGalleryItemAdded, ID: item.ID, At: s.now()})
	return item, nil
}

// Delete removes an image.
func (s *GalleryService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.store.LoadGallery(ctx)
	if err != nil {
		return domain.WrapLabError(domain.ErrStorage, "failed to load gallery", err)
	}
	kept := make([]domain.GalleryItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return fmt.Errorf("gallery item %s: %w", id, domain.ErrNotFound)
	}
	if err := s.store.SaveGallery(ctx, kept); err != nil {
		return domain.WrapLabError(domain.ErrStorage, "failed to save gallery", err)
	}
	s.events.Publish(Event{Type: EventGalleryItemDeleted, ID: id, At: s.now()})
	return nil
}

// DataURL encodes bytes as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL decodes a base64 data URL into its MIME type and bytes.
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, domain.NewValidationError("url", "not a data URL", nil)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, domain.NewValidationError("url", "data URL must be base64 encoded", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, domain.NewValidationError("url", "invalid base64 payload", nil)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}
