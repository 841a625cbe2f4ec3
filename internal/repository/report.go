// Package repository implements the relational PostgreSQL backend: one row
// per report, consultation and gallery item instead of a single JSON blob.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

const seedMarkerKey = "seed:reports"

// ReportRepository stores the laboratory collections in the lab_* tables.
// It implements domain.LabStore.
type ReportRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool, logger *logrus.Logger) *ReportRepository {
	return &ReportRepository{
		db:  db,
		log: logger,
	}
}

// Load returns every report, most recently saved first.
func (r *ReportRepository) Load(ctx context.Context) ([]domain.DiagnosticReport, error) {
	rows, err := r.db.Query(ctx, `SELECT id, document FROM lab_reports ORDER BY seq DESC`)
	if err != nil {
		r.log.WithError(err).Error("Failed to query reports")
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	reports := []domain.DiagnosticReport{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var report domain.DiagnosticReport
		if err := json.Unmarshal(doc, &report); err != nil {
			r.log.WithFields(logrus.Fields{
				"report_id": id,
				"error":     err,
			}).Warn("Skipping malformed report row")
			continue
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// AppendOne inserts a report as the newest row.
func (r *ReportRepository) AppendOne(ctx context.Context, report domain.DiagnosticReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = r.db.Exec(ctx, insertReportSQL,
		report.ID, report.FarmerName, string(report.Species), string(report.Status), report.DateOfReport, doc)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"report_id": report.ID,
			"error":     err,
		}).Error("Failed to insert report")
		return fmt.Errorf("inserting report: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"report_id": report.ID,
		"species":   report.Species,
	}).Info("Report saved")
	return nil
}

const insertReportSQL = `
	INSERT INTO lab_reports (id, farmer_name, species, status, date_of_report, document)
	VALUES ($1, $2, $3, $4, $5, $6)`

// SaveAll replaces every report. The first element becomes the newest row.
func (r *ReportRepository) SaveAll(ctx context.Context, reports []domain.DiagnosticReport) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return replaceReports(ctx, tx, reports)
	})
}

func replaceReports(ctx context.Context, tx pgx.Tx, reports []domain.DiagnosticReport) error {
	if _, err := tx.Exec(ctx, `DELETE FROM lab_reports`); err != nil {
		return fmt.Errorf("clearing reports: %w", err)
	}

	batch := &pgx.Batch{}
	for i := len(reports) - 1; i >= 0; i-- {
		report := reports[i]
		doc, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encoding report %s: %w", report.ID, err)
		}
		batch.Queue(insertReportSQL,
			report.ID, report.FarmerName, string(report.Species), string(report.Status), report.DateOfReport, doc)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting reports: %w", err)
	}
	return nil
}

// DeleteByID removes the report rows with the id.
func (r *ReportRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lab_reports WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"report_id": id,
			"error":     err,
		}).Error("Failed to delete report")
		return fmt.Errorf("deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithField("report_id", id).Info("Report deleted")
	return nil
}

// SeedIfAbsent writes reports the first time the repository is used. A
// marker row in lab_blobs remembers that seeding happened, so a later empty
// table is not re-seeded.
func (r *ReportRepository) SeedIfAbsent(ctx context.Context, reports []domain.DiagnosticReport) (bool, error) {
	seeded := false
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var marker int
		err := tx.QueryRow(ctx, `SELECT 1 FROM lab_blobs WHERE key = $1`, seedMarkerKey).Scan(&marker)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("checking seed marker: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM lab_reports`).Scan(&count); err != nil {
			return fmt.Errorf("counting reports: %w", err)
		}
		if count == 0 {
			if err := replaceReports(ctx, tx, reports); err != nil {
				return err
			}
			seeded = true
		}
		_, err = tx.Exec(ctx, `INSERT INTO lab_blobs (key, value) VALUES ($1, 'true'::jsonb)`, seedMarkerKey)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("seeding reports: %w", err)
	}
	return seeded, nil
}

// CountBySpecies aggregates saved reports per species.
func (r *ReportRepository) CountBySpecies(ctx context.Context) (map[domain.Species]int, error) {
	rows, err := r.db.Query(ctx, `SELECT species, COUNT(*) FROM lab_reports GROUP BY species`)
	if err != nil {
		return nil, fmt.Errorf("counting reports by species: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Species]int)
	for rows.Next() {
		var species string
		var n int
		if err := rows.Scan(&species, &n); err != nil {
			return nil, fmt.Errorf("scanning species count: %w", err)
		}
		counts[domain.Species(species)] = n
	}
	return counts, rows.Err()
}

// Ping checks the pool.
func (r *ReportRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close closes the pool.
func (r *ReportRepository) Close() error {
	r.db.Close()
	return nil
}
