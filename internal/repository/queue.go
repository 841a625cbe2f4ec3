package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/caddl-lab-desk/internal/domain"
)

// LoadConsultations returns the consultation queue in stored order.
func (r *ReportRepository) LoadConsultations(ctx context.Context) ([]domain.ConsultationRequest, error) {
	return loadDocuments[domain.ConsultationRequest](ctx, r,
		`SELECT document FROM lab_consultations ORDER BY position`)
}

// SaveConsultations replaces the consultation queue.
func (r *ReportRepository) SaveConsultations(ctx context.Context, requests []domain.ConsultationRequest) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lab_consultations`); err != nil {
			return fmt.Errorf("clearing consultations: %w", err)
		}
		batch := &pgx.Batch{}
		for i, req := range requests {
			doc, err := json.Marshal(req)
			if err != nil {
				return fmt.Errorf("encoding consultation %s: %w", req.ID, err)
			}
			batch.Queue(`INSERT INTO lab_consultations (position, id, report_id, document) VALUES ($1, $2, $3, $4)`,
				i, req.ID, req.ReportID, doc)
		}
		return sendBatch(ctx, tx, batch, "consultations")
	})
}

// LoadGallery returns gallery items in stored order.
func (r *ReportRepository) LoadGallery(ctx context.Context) ([]domain.GalleryItem, error) {
	return loadDocuments[domain.GalleryItem](ctx, r,
		`SELECT document FROM lab_gallery ORDER BY position`)
}

// SaveGallery replaces the gallery.
func (r *ReportRepository) SaveGallery(ctx context.Context, items []domain.GalleryItem) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lab_gallery`); err != nil {
			return fmt.Errorf("clearing gallery: %w", err)
		}
		batch := &pgx.Batch{}
		for i, item := range items {
			doc, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encoding gallery item %s: %w", item.ID, err)
			}
			batch.Queue(`INSERT INTO lab_gallery (position, id, document) VALUES ($1, $2, $3)`, i, item.ID, doc)
		}
		return sendBatch(ctx, tx, batch, "gallery")
	})
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting %s: %w", what, err)
	}
	return nil
}

func loadDocuments[T any](ctx context.Context, r *ReportRepository, query string) ([]T, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		var item T
		if err := json.Unmarshal(doc, &item); err != nil {
			r.log.WithError(err).Warn("Skipping malformed document row")
			continue
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
