package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/catalog"
	"github.com/caddl-lab-desk/internal/domain"
)

// EntryOp names a mutation of a draft's result set.
type EntryOp string

const (
	OpAddSingle   EntryOp = "add_single"
	OpAddBulk     EntryOp = "add_bulk"
	OpUpdate      EntryOp = "update"
	OpRemove      EntryOp = "remove"
	OpAddFreeform EntryOp = "add_freeform"
)

// EntryOperation describes one result-set mutation requested by a client.
type EntryOperation struct {
	Op          EntryOp            `json:"op"`
	Category    domain.CategoryKey `json:"category"`
	TestName    string             `json:"testName,omitempty"`
	SubCategory string             `json:"subCategory,omitempty"`
	Index       int                `json:"index"`
	Value       string             `json:"value,omitempty"`
	Entry       *domain.TestEntry  `json:"entry,omitempty"`
}

// ReportSummary is the list view of a report.
type ReportSummary struct {
	ID           string              `json:"id"`
	DisplayID    string              `json:"displayId"`
	FarmerName   string              `json:"farmerName"`
	Species      domain.Species      `json:"species"`
	DateOfReport string              `json:"dateOfReport"`
	Status       domain.ReportStatus `json:"status"`
	TestCount    int                 `json:"testCount"`
}

// DashboardStats are the headline figures of the landing page.
type DashboardStats struct {
	Total          int             `json:"total"`
	LastSevenDays  int             `json:"lastSevenDays"`
	Bovine         int             `json:"bovine"`
	SmallRuminants int             `json:"caprineOvine"`
	Recent         []ReportSummary `json:"recent"`
}

// reportSeeder is implemented by stores that can seed atomically.
type reportSeeder interface {
	SeedIfAbsent(ctx context.Context, reports []domain.DiagnosticReport) (bool, error)
}

// ReportService owns drafts, saved reports, the dashboard and backups.
type ReportService struct {
	store      domain.LabStore
	catalog    *catalog.Holder
	classifier *Classifier
	events     EventPublisher
	logger     *logrus.Logger
	now        func() time.Time
}

// ReportServiceOption configures a ReportService.
type ReportServiceOption func(*ReportService)

// WithEventPublisher publishes change events to p.
func WithEventPublisher(p EventPublisher) ReportServiceOption {
	return func(s *ReportService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) {
		s.now = now
	}
}

// NewReportService creates a report service.
func NewReportService(store domain.LabStore, holder *catalog.Holder, classifier *Classifier, logger *logrus.Logger, opts ...ReportServiceOption) *ReportService {
	s := &ReportService{
		store:      store,
		catalog:    holder,
		classifier: classifier,
		events:     noopPublisher{},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the active catalog.
func (s *ReportService) Catalog() *catalog.Catalog {
	return s.catalog.Get()
}

// Classifier returns the shared classifier.
func (s *ReportService) Classifier() *Classifier {
	return s.classifier
}

// NewDraft creates an unsaved report covering the active schema.
func (s *ReportService) NewDraft() domain.DiagnosticReport {
	return domain.NewDiagnosticReport(s.catalog.Get().Keys(), s.now())
}

// ApplyEntry applies one mutation to a draft and returns the new draft. On
// error the returned draft is the input, unchanged.
func (s *ReportService) ApplyEntry(draft domain.DiagnosticReport, op EntryOperation) (domain.DiagnosticReport, error) {
	cat := s.catalog.Get()
	set := draft.CategorizedResults.EnsureSchema(cat.Keys())

	var (
		next domain.CategorizedResultSet
		err  error
	)
	switch op.Op {
	case OpAddSingle:
		def, _ := cat.Lookup(op.Category, op.TestName)
		next, err = set.AddSingle(op.Category, def)
	case OpAddBulk:
		var filter domain.DefinitionFilter
		if op.SubCategory != "" {
			filter = domain.BySubCategory(op.SubCategory)
		}
		next, err = set.AddBulk(op.Category, cat.Tests(), filter)
	case OpUpdate:
		next, err = set.UpdateResultValue(op.Category, op.Index, op.Value)
	case OpRemove:
		next, err = set.RemoveEntry(op.Category, op.Index)
	case OpAddFreeform:
		if op.Entry == nil {
			return draft, domain.NewLabError(domain.ErrInvalidInput, "add_freeform requires an entry", "", "")
		}
		next, err = set.AddFreeform(op.Category, *op.Entry)
	default:
		return draft, domain.NewLabError(domain.ErrInvalidInput, fmt.Sprintf("unknown entry operation %q", op.Op), "", "")
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"report_id": draft.ID,
			"op":        op.Op,
			"category":  op.Category,
		}).WithError(err).Debug("Entry operation rejected")
		return draft, err
	}

	out := draft.Clone()
	out.CategorizedResults = next
	return out, nil
}

// Save validates a draft and prepends it to the report store. Every save
// creates a new entry; saving the same draft twice stores it twice.
func (s *ReportService) Save(ctx context.Context, draft domain.DiagnosticReport) (domain.DiagnosticReport, error) {
	report := draft.Clone()
	if report.Status == "" {
		report.Status = domain.PENDING
	}
	if report.Sex == "" {
		report.Sex = domain.UNKNOWN
	}
	if strings.TrimSpace(report.LabTechnicianName) == "" {
		report.LabTechnicianName = domain.DefaultLabTechnician
	}
	if strings.TrimSpace(report.AssistantDirector) == "" {
		report.AssistantDirector = domain.DefaultAssistantDirector
	}
	report.CategorizedResults = report.CategorizedResults.EnsureSchema(s.catalog.Get().Keys())

	if err := report.Validate(); err != nil {
		return draft, err
	}

	if err := s.store.AppendOne(ctx, report); err != nil {
		s.logger.WithField("report_id", report.ID).WithError(err).Error("Failed to save report")
		return draft, domain.WrapLabError(domain.ErrStorage, "failed to save report", err)
	}

	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"species":   report.Species,
		"tests":     report.CategorizedResults.Count(),
	}).Info("Report saved")
	s.events.Publish(Event{Type: EventReportSaved, ID: report.ID, At: s.now()})
	return report, nil
}

// List returns saved reports, most recent first.
func (s *ReportService) List(ctx context.Context) ([]domain.DiagnosticReport, error) {
	reports, err := s.store.Load(ctx)
	if err != nil {
		return nil, domain.WrapLabError(domain.ErrStorage, "failed to load reports", err)
	}
	keys := s.catalog.Get().Keys()
	for i := range reports {
		reports[i].CategorizedResults = reports[i].CategorizedResults.EnsureSchema(keys)
	}
	return reports, nil
}

// Summaries returns the list view of saved reports.
func (s *ReportService) Summaries(ctx context.Context) ([]ReportSummary, error) {
	reports, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReportSummary, len(reports))
	for i, r := range reports {
		out[i] = summarize(r)
	}
	return out, nil
}

func summarize(r domain.DiagnosticReport) ReportSummary {
	return ReportSummary{
		ID:           r.ID,
		DisplayID:    r.DisplayID(),
		FarmerName:   r.FarmerName,
		Species:      r.Species,
		DateOfReport: r.DateOfReport,
		Status:       r.Status,
		TestCount:    r.CategorizedResults.Count(),
	}
}

// Get finds a saved report by id.
func (s *ReportService) Get(ctx context.Context, id string) (domain.DiagnosticReport, error) {
	reports, err := s.List(ctx)
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.DiagnosticReport{}, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
}

// Annotated returns a saved report with abnormality flags.
func (s *ReportService) Annotated(ctx context.Context, id string) (AnnotatedReport, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return AnnotatedReport{}, err
	}
	return s.classifier.Annotate(r, s.catalog.Get()), nil
}

// Delete removes a saved report. Consultations referring to it are kept.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.WrapLabError(domain.ErrStorage, "failed to delete report", err)
	}
	s.logger.WithField("report_id", id).Info("Report deleted")
	s.events.Publish(Event{Type: EventReportDeleted, ID: id, At: s.now()})
	return nil
}

// Dashboard computes the headline statistics.
func (s *ReportService) Dashboard(ctx context.Context) (DashboardStats, error) {
	reports, err := s.List(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	return computeDashboard(reports, s.now()), nil
}

func computeDashboard(reports []domain.DiagnosticReport, now time.Time) DashboardStats {
	stats := DashboardStats{Total: len(reports), Recent: []ReportSummary{}}
	cutoff := now.Add(-7 * 24 * time.Hour)
	for i, r := range reports {
		if d, ok := r.ReportDate(); ok && d.After(cutoff) {
			stats.LastSevenDays++
		}
		switch {
		case r.Species == domain.BOVINE:
			stats.Bovine++
		case r.Species.IsSmallRuminant():
			stats.SmallRuminants++
		}
		if i < 5 {
			stats.Recent = append(stats.Recent, summarize(r))
		}
	}
	return stats
}

// Seed writes the demo report when no report list has ever been stored. With
// force a copy of the demo report under a fresh id is prepended regardless.
func (s *ReportService) Seed(ctx context.Context, force bool) (bool, error) {
	demo := DemoReport(s.catalog.Get().Keys())
	if force {
		demo.ID = uuid.New().String()
		if err := s.store.AppendOne(ctx, demo); err != nil {
			return false, domain.WrapLabError(domain.ErrStorage, "failed to seed demo report", err)
		}
		s.logger.WithField("report_id", demo.ID).Info("Demo report added")
		return true, nil
	}

	seeder, ok := s.store.(reportSeeder)
	if !ok {
		return false, nil
	}
	wrote, err := seeder.SeedIfAbsent(ctx, []domain.DiagnosticReport{demo})
	if err != nil {
		return false, domain.WrapLabError(domain.ErrStorage, "failed to seed demo report", err)
	}
	if wrote {
		s.logger.Info("Empty store seeded with demo report")
	}
	return wrote, nil
}
