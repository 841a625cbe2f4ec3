package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

// AIAdvisory is shown to the technician when the insight call fails.
const AIAdvisory = "AI analysis unavailable, please enter remarks manually"

// ClinicalSummaryMarker separates the detailed analysis from the summary in
// the report remarks.
const ClinicalSummaryMarker = "\n\n--- CLINICAL SUMMARY ---\n"

const defaultInsightTimeout = 60 * time.Second

// InsightService enriches drafts with AI-generated narrative. At most one
// call per draft id is in flight at a time.
type InsightService struct {
	provider domain.InsightProvider
	timeout  time.Duration
	logger   *logrus.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewInsightService creates the service. A nil provider makes every call
// fail with AI_UNAVAILABLE.
func NewInsightService(provider domain.InsightProvider, timeout time.Duration, logger *logrus.Logger) *InsightService {
	if timeout <= 0 {
		timeout = defaultInsightTimeout
	}
	return &InsightService{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Enabled reports whether a provider is configured.
func (s *InsightService) Enabled() bool {
	return s.provider != nil
}

func (s *InsightService) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *InsightService) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// Enrich asks the provider for an analysis of the draft. On success the
// remarks and summary are replaced and the status becomes Completed. On any
// failure the draft is returned unchanged together with an error carrying
// the advisory message.
func (s *InsightService) Enrich(ctx context.Context, draft domain.DiagnosticReport) (domain.DiagnosticReport, error) {
	if s.provider == nil {
		return draft, domain.WrapLabError(domain.ErrAIUnavailable, AIAdvisory, domain.ErrInsightFailed)
	}
	if !s.acquire(draft.ID) {
		return draft, domain.WrapLabError(domain.ErrConflict, "an analysis for this report is already running", domain.ErrInsightInFlight)
	}
	defer s.release(draft.ID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	insight, err := s.provider.GenerateInsight(ctx, draft.Clone())
	if err == nil {
		err = validateInsight(insight)
	}
	if err != nil {
		fields := logrus.Fields{
			"report_id": draft.ID,
			"elapsed":   time.Since(start),
		}
		if errors.Is(err, context.DeadlineExceeded) {
			fields["timeout"] = s.timeout
		}
		s.logger.WithFields(fields).WithError(err).Warn("AI insight failed")
		return draft, domain.WrapLabError(domain.ErrAIUnavailable, AIAdvisory, fmt.Errorf("%w: %v", domain.ErrInsightFailed, err))
	}

	out := draft.Clone()
	out.OtherRemarks = ComposeRemarks(insight)
	out.ConciseSummary = strings.TrimSpace(insight.ConciseSummary)
	out.Status = domain.COMPLETED

	s.logger.WithFields(logrus.Fields{
		"report_id": draft.ID,
		"elapsed":   time.Since(start),
	}).Info("AI insight applied")
	return out, nil
}

func validateInsight(insight *domain.Insight) error {
	if insight == nil {
		return errors.New("empty insight")
	}
	if strings.TrimSpace(insight.DetailedAnalysis) == "" {
		return errors.New("insight has no detailed analysis")
	}
	if strings.TrimSpace(insight.ConciseSummary) == "" {
		return errors.New("insight has no summary")
	}
	return nil
}

// ComposeRemarks builds the remarks text: the detailed analysis, any
// recommendations, then the summary after ClinicalSummaryMarker.
func ComposeRemarks(insight *domain.Insight) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(insight.DetailedAnalysis))
	var recs []string
	for _, r := range insight.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}
	if len(recs) > 0 {
		b.WriteString("\n\nRECOMMENDATIONS:")
		for i, r := range recs {
			fmt.Fprintf(&b, "\n%d. %s", i+1, r)
		}
	}
	b.WriteString(ClinicalSummaryMarker)
	b.WriteString(strings.TrimSpace(insight.ConciseSummary))
	return b.String()
}
