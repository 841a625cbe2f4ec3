package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

// RestoreResult summarizes what a restore replaced.
type RestoreResult struct {
	Reports         int  `json:"reports"`
	Consultations   int  `json:"consultations"`
	Gallery         int  `json:"gallery"`
	GalleryReplaced bool `json:"galleryReplaced"`
}

// Export collects every collection into a backup archive.
func (s *ReportService) Export(ctx context.Context) (domain.Archive, error) {
	reports, err := s.store.Load(ctx)
	if err != nil {
		return domain.Archive{}, domain.WrapLabError(domain.ErrStorage, "failed to load reports", err)
	}
	consultations, err := s.store.LoadConsultations(ctx)
	if err != nil {
		return domain.Archive{}, domain.WrapLabError(domain.ErrStorage, "failed to load consultations", err)
	}
	gallery, err := s.store.LoadGallery(ctx)
	if err != nil {
		return domain.Archive{}, domain.WrapLabError(domain.ErrStorage, "failed to load gallery", err)
	}
	return domain.Archive{Reports: reports, Consultations: consultations, Gallery: gallery}, nil
}

// ParseArchive decodes a backup document. It requires a JSON object whose
// "reports" member is an array. "consultations" may be absent or null; when
// "gallery" is absent the returned gallery is nil.
func ParseArchive(data []byte) (domain.Archive, bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Archive{}, false, invalidArchive("document is not a JSON object", err)
	}

	reportsRaw, ok := raw["reports"]
	if !ok || !isJSONArray(reportsRaw) {
		return domain.Archive{}, false, invalidArchive("reports must be an array", nil)
	}

	var archive domain.Archive
	if err := json.Unmarshal(reportsRaw, &archive.Reports); err != nil {
		return domain.Archive{}, false, invalidArchive("reports are malformed", err)
	}

	archive.Consultations = []domain.ConsultationRequest{}
	if c, ok := raw["consultations"]; ok && !isJSONNull(c) {
		if !isJSONArray(c) {
			return domain.Archive{}, false, invalidArchive("consultations must be an array", nil)
		}
		if err := json.Unmarshal(c, &archive.Consultations); err != nil {
			return domain.Archive{}, false, invalidArchive("consultations are malformed", err)
		}
	}

	g, hasGallery := raw["gallery"]
	if hasGallery && !isJSONNull(g) {
		if !isJSONArray(g) {
			return domain.Archive{}, false, invalidArchive("gallery must be an array", nil)
		}
		if err := json.Unmarshal(g, &archive.Gallery); err != nil {
			return domain.Archive{}, false, invalidArchive("gallery is malformed", err)
		}
		if archive.Gallery == nil {
			archive.Gallery = []domain.GalleryItem{}
		}
	} else {
		hasGallery = false
	}
	return archive, hasGallery, nil
}

func invalidArchive(msg string, cause error) error {
	if cause == nil {
		cause = domain.ErrArchiveInvalid
	} else {
		cause = fmt.Errorf("%w: %v", domain.ErrArchiveInvalid, cause)
	}
	return domain.WrapLabError(domain.ErrInvalidArchive, msg, cause)
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Restore replaces the stored collections with the archive's content. The
// document is fully validated before anything is written; an invalid
// archive leaves the store untouched. If a write fails part way, the
// collections already replaced are put back.
func (s *ReportService) Restore(ctx context.Context, data []byte) (RestoreResult, error) {
	archive, hasGallery, err := ParseArchive(data)
	if err != nil {
		s.logger.WithError(err).Warn("Rejected backup archive")
		return RestoreResult{}, err
	}

	keys := s.catalog.Get().Keys()
	for i := range archive.Reports {
		archive.Reports[i].CategorizedResults = archive.Reports[i].CategorizedResults.EnsureSchema(keys)
	}

	prev, err := s.snapshot(ctx, hasGallery)
	if err != nil {
		return RestoreResult{}, domain.WrapLabError(domain.ErrStorage, "failed to read current data before restore", err)
	}

	steps := []restoreStep{
		{"reports", func() error { return s.store.SaveAll(ctx, archive.Reports) }, func() error { return s.store.SaveAll(ctx, prev.Reports) }},
		{"consultations", func() error { return s.store.SaveConsultations(ctx, archive.Consultations) }, func() error { return s.store.SaveConsultations(ctx, prev.Consultations) }},
	}
	if hasGallery {
		steps = append(steps, restoreStep{"gallery", func() error { return s.store.SaveGallery(ctx, archive.Gallery) }, func() error { return s.store.SaveGallery(ctx, prev.Gallery) }})
	}

	for i, step := range steps {
		if err := step.apply(); err != nil {
			s.rollback(steps[:i])
			return RestoreResult{}, domain.WrapLabError(domain.ErrStorage, "failed to restore "+step.name, err)
		}
	}

	result := RestoreResult{
		Reports:       len(archive.Reports),
		Consultations: len(archive.Consultations),
	}
	if hasGallery {
		result.Gallery = len(archive.Gallery)
		result.GalleryReplaced = true
	}

	s.logger.WithFields(logrus.Fields{
		"reports":       result.Reports,
		"consultations": result.Consultations,
		"gallery":       result.GalleryReplaced,
	}).Info("Backup archive restored")
	s.events.Publish(Event{Type: EventArchiveRestored, At: s.now()})
	return result, nil
}

// restoreStep replaces one collection and knows how to put the old one back.
type restoreStep struct {
	name   string
	apply  func() error
	revert func() error
}

func (s *ReportService) snapshot(ctx context.Context, withGallery bool) (domain.Archive, error) {
	var (
		prev domain.Archive
		err  error
	)
	if prev.Reports, err = s.store.Load(ctx); err != nil {
		return prev, err
	}
	if prev.Consultations, err = s.store.LoadConsultations(ctx); err != nil {
		return prev, err
	}
	if withGallery {
		if prev.Gallery, err = s.store.LoadGallery(ctx); err != nil {
			return prev, err
		}
	}
	return prev, nil
}

// rollback reverts already applied steps, newest first.
func (s *ReportService) rollback(applied []restoreStep) {
	for i := len(applied) - 1; i >= 0; i-- {
		if err := applied[i].revert(); err != nil {
			s.logger.WithField("collection", applied[i].name).WithError(err).Error("Failed to roll back restore")
		}
	}
}
