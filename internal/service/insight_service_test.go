package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/domain"
)

type stubProvider struct {
	insight *domain.Insight
	err     error
}

func (p stubProvider) GenerateInsight(context.Context, domain.DiagnosticReport) (*domain.Insight, error) {
	return p.insight, p.err
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GenerateInsight(ctx context.Context, report domain.DiagnosticReport) (*domain.Insight, error) {
	args := m.Called(ctx, report)
	insight, _ := args.Get(0).(*domain.Insight)
	return insight, args.Error(1)
}

// blockingProvider holds every call until release is closed.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) GenerateInsight(ctx context.Context, _ domain.DiagnosticReport) (*domain.Insight, error) {
	close(p.started)
	select {
	case <-p.release:
		return &domain.Insight{DetailedAnalysis: "ok", ConciseSummary: "ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func draftWithGlucose(t *testing.T) domain.DiagnosticReport {
	t.Helper()
	env := newTestEnv(t)
	draft := env.reports.NewDraft()
	draft.OtherRemarks = "typed by hand"
	draft, err := env.reports.ApplyEntry(draft, EntryOperation{Op: OpAddSingle, Category: "biochemistry", TestName: "Blood Glucose"})
	require.NoError(t, err)
	return draft
}

func TestEnrichSuccess(t *testing.T) {
	svc := NewInsightService(stubProvider{insight: &domain.Insight{
		DetailedAnalysis: "Hypoglycemia consistent with ketosis.",
		ConciseSummary:   "Mild hypoglycemia.",
		Recommendations:  []string{"Oral propylene glycol", " ", "Recheck glucose in 3 days"},
	}}, time.Second, quietLogger())

	draft := draftWithGlucose(t)
	out, err := svc.Enrich(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, domain.COMPLETED, out.Status)
	assert.Equal(t, "Mild hypoglycemia.", out.ConciseSummary)
	assert.Equal(t,
		"Hypoglycemia consistent with ketosis.\n\nRECOMMENDATIONS:\n1. Oral propylene glycol\n2. Recheck glucose in 3 days"+
			ClinicalSummaryMarker+"Mild hypoglycemia.",
		out.OtherRemarks)
	assert.Equal(t, domain.PENDING, draft.Status, "input draft untouched")
}

func TestEnrichFailureLeavesDraftUnchanged(t *testing.T) {
	cases := map[string]domain.InsightProvider{
		"provider error":   stubProvider{err: errors.New("quota exceeded")},
		"nil insight":      stubProvider{},
		"missing summary":  stubProvider{insight: &domain.Insight{DetailedAnalysis: "text"}},
		"missing analysis": stubProvider{insight: &domain.Insight{ConciseSummary: "text"}},
	}

	for name, provider := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewInsightService(provider, time.Second, quietLogger())
			draft := draftWithGlucose(t)

			out, err := svc.Enrich(context.Background(), draft)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInsightFailed))
			assert.Equal(t, domain.ErrAIUnavailable, domain.CodeOf(err))
			assert.Contains(t, err.Error(), AIAdvisory)
			assert.Equal(t, draft, out)
		})
	}
}

func TestEnrichWithoutProvider(t *testing.T) {
	svc := NewInsightService(nil, 0, quietLogger())
	assert.False(t, svc.Enabled())

	_, err := svc.Enrich(context.Background(), draftWithGlucose(t))
	assert.Equal(t, domain.ErrAIUnavailable, domain.CodeOf(err))
}

func TestEnrichTimeout(t *testing.T) {
	provider := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewInsightService(provider, 20*time.Millisecond, quietLogger())

	_, err := svc.Enrich(context.Background(), draftWithGlucose(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsightFailed))
	assert.True(t, strings.Contains(err.(*domain.LabError).Details, "deadline exceeded"))
}

func TestEnrichRejectsConcurrentCallForSameDraft(t *testing.T) {
	provider := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewInsightService(provider, 5*time.Second, quietLogger())
	draft := draftWithGlucose(t)

	type result struct {
		report domain.DiagnosticReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := svc.Enrich(context.Background(), draft)
		done <- result{r, err}
	}()
	<-provider.started

	_, err := svc.Enrich(context.Background(), draft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsightInFlight))
	assert.Equal(t, domain.ErrConflict, domain.CodeOf(err))

	close(provider.release)
	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, domain.COMPLETED, first.report.Status)

	svc.provider = stubProvider{insight: &domain.Insight{DetailedAnalysis: "again", ConciseSummary: "again"}}
	_, err = svc.Enrich(context.Background(), draft)
	assert.NoError(t, err, "guard is released after completion")
}

func TestEnrichSendsDraftAndLogsFailure(t *testing.T) {
	draft := draftWithGlucose(t)
	provider := &mockProvider{}
	provider.On("GenerateInsight", mock.Anything, mock.MatchedBy(func(r domain.DiagnosticReport) bool {
		return r.ID == draft.ID && len(r.CategorizedResults["biochemistry"]) == 1
	})).Return(nil, errors.New("quota exceeded")).Once()

	logger, hook := test.NewNullLogger()
	svc := NewInsightService(provider, time.Second, logger)

	_, err := svc.Enrich(context.Background(), draft)
	require.Error(t, err)
	provider.AssertExpectations(t)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "AI insight failed", entry.Message)
	assert.Equal(t, draft.ID, entry.Data["report_id"])
}
