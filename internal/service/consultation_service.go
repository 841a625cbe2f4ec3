package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

// CreateConsultationInput is a technician's request for senior review.
type CreateConsultationInput struct {
	ReportID    string `json:"reportId"`
	RequestNote string `json:"requestNote"`
	Urgency     string `json:"urgency"`
}

// ConsultationService manages the consultation queue.
type ConsultationService struct {
	store   domain.LabStore
	reports *ReportService
	events  EventPublisher
	logger  *logrus.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewConsultationService creates the service. Reports are looked up through
// the report service.
func NewConsultationService(store domain.LabStore, reports *ReportService, logger *logrus.Logger) *ConsultationService {
	return &ConsultationService{
		store:   store,
		reports: reports,
		events:  reports.events,
		logger:  logger,
		now:     reports.now,
	}
}

// List returns the queue, most recent first.
func (s *ConsultationService) List(ctx context.Context) ([]domain.ConsultationRequest, error) {
	list, err := s.store.LoadConsultations(ctx)
	if err != nil {
		return nil, domain.WrapLabError(domain.ErrStorage, "failed to load consultations", err)
	}
	return list, nil
}

// Create queues a request for an existing report. Farmer name and species
// are copied from the report at creation time.
func (s *ConsultationService) Create(ctx context.Context, in CreateConsultationInput) (domain.ConsultationRequest, error) {
	if strings.TrimSpace(in.ReportID) == "" {
		return domain.ConsultationRequest{}, domain.NewValidationError("reportId", "report id is required", in.ReportID)
	}
	urgency, err := domain.ParseUrgency(in.Urgency)
	if err != nil {
		return domain.ConsultationRequest{}, err
	}
	report, err := s.reports.Get(ctx, in.ReportID)
	if err != nil {
		return domain.ConsultationRequest{}, err
	}

	req := domain.ConsultationRequest{
		ID:          uuid.New().String(),
		ReportID:    report.ID,
		FarmerName:  report.FarmerName,
		Species:     report.Species,
		RequestNote: strings.TrimSpace(in.RequestNote),
		Urgency:     urgency,
		Status:      domain.SUBMITTED,
		CreatedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.List(ctx)
	if err != nil {
		return domain.ConsultationRequest{}, err
	}
	list = append([]domain.ConsultationRequest{req}, list...)
	if err := s.store.SaveConsultations(ctx, list); err != nil {
		return domain.ConsultationRequest{}, domain.WrapLabError(domain.ErrStorage, "failed to save consultation", err)
	}

	s.logger.WithFields(logrus.Fields{
		"consultation_id": req.ID,
		"report_id":       req.ReportID,
		"urgency":         req.Urgency,
	}).Info("Consultation requested")
	s.events.Publish(Event{Type: EventConsultationCreated, ID: req.ID, At: s.now()})
	return req, nil
}

// UpdateStatus moves a request to a new status.
func (s *ConsultationService) UpdateStatus(ctx context.Context, id string, status domain.ConsultationStatus) (domain.ConsultationRequest, error) {
	if !status.IsValid() {
		return domain.ConsultationRequest{}, domain.NewValidationError("status", "invalid consultation status", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.List(ctx)
	if err != nil {
		return domain.ConsultationRequest{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].Status = status
		if err := s.store.SaveConsultations(ctx, list); err != nil {
			return domain.ConsultationRequest{}, domain.WrapLabError(domain.ErrStorage, "failed to update consultation", err)
		}
		s.events.Publish(Event{Type: EventConsultationUpdated, ID: id, At: s.now()})
		return list[i], nil
	}
	return domain.ConsultationRequest{}, fmt.Errorf("consultation %s: %w", id, domain.ErrNotFound)
}

// Delete removes a request from the queue.
func (s *ConsultationService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := make([]domain.ConsultationRequest, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(list) {
		return fmt.Errorf("consultation %s: %w", id, domain.ErrNotFound)
	}
	if err := s.store.SaveConsultations(ctx, kept); err != nil {
		return domain.WrapLabError(domain.ErrStorage, "failed to delete consultation", err)
	}
	s.events.Publish(Event{Type: EventConsultationDeleted, ID: id, At: s.now()})
	return nil
}
