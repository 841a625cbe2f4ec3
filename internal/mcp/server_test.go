package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/catalog"
	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/service"
	"github.com/caddl-lab-desk/internal/store"
)

type stubProvider struct {
	insight *domain.Insight
	err     error
}

func (p stubProvider) GenerateInsight(context.Context, domain.DiagnosticReport) (*domain.Insight, error) {
	return p.insight, p.err
}

func newTestServer(t *testing.T, provider domain.InsightProvider) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	collections := store.NewCollections(store.NewMemoryStore(), logger)
	reports := service.NewReportService(collections, catalog.NewHolder(catalog.Default()), service.NewClassifier(16, logger), logger)
	insights := service.NewInsightService(provider, time.Second, logger)
	return NewServer(domain.MCPConfig{}, reports, insights, logger)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, []string{
		"classify_result",
		"list_catalog",
		"list_reports",
		"get_report",
		"dashboard_stats",
		"generate_insight",
	}, s.Tools())
}

func TestClassifyResult(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		params   ClassifyResultParams
		abnormal bool
		kind     string
	}{
		{"inside interval", ClassifyResultParams{Value: "10.5", NormalRange: "8.0 - 15.0"}, false, "interval"},
		{"above interval", ClassifyResultParams{Value: "16.2", NormalRange: "8.0 - 15.0"}, true, "interval"},
		{"positive against negative", ClassifyResultParams{Value: "Positive", NormalRange: "Negative"}, true, "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := s.handleClassifyResult(ctx, nil, tt.params)
			require.NoError(t, err)
			out := decodeResult[ClassifyResultOutput](t, res)
			assert.Equal(t, tt.abnormal, out.Abnormal)
			assert.Equal(t, tt.kind, out.Kind)
		})
	}

	res, _, err := s.handleClassifyResult(ctx, nil, ClassifyResultParams{Value: "1"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListCatalog(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	res, _, err := s.handleListCatalog(ctx, nil, ListCatalogParams{})
	require.NoError(t, err)
	all := decodeResult[[]catalogSection](t, res)
	assert.Len(t, all, len(catalog.Default().Keys()))

	res, _, err = s.handleListCatalog(ctx, nil, ListCatalogParams{Category: "parasitology"})
	require.NoError(t, err)
	one := decodeResult[[]catalogSection](t, res)
	require.Len(t, one, 1)
	assert.NotEmpty(t, one[0].Tests)

	res, _, err = s.handleListCatalog(ctx, nil, ListCatalogParams{Category: "astrology"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestReportTools(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	_, err := s.reports.Seed(ctx, false)
	require.NoError(t, err)

	draft := s.reports.NewDraft()
	draft.Species = domain.CANINE
	_, err = s.reports.Save(ctx, draft)
	require.NoError(t, err)

	res, _, err := s.handleListReports(ctx, nil, ListReportsParams{})
	require.NoError(t, err)
	assert.Len(t, decodeResult[[]service.ReportSummary](t, res), 2)

	res, _, err = s.handleListReports(ctx, nil, ListReportsParams{Species: "bovine"})
	require.NoError(t, err)
	bovine := decodeResult[[]service.ReportSummary](t, res)
	require.Len(t, bovine, 1)

	res, _, err = s.handleListReports(ctx, nil, ListReportsParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, decodeResult[[]service.ReportSummary](t, res), 1)

	res, _, err = s.handleGetReport(ctx, nil, GetReportParams{ReportID: bovine[0].ID})
	require.NoError(t, err)
	annotated := decodeResult[service.AnnotatedReport](t, res)
	assert.Equal(t, 2, annotated.AbnormalCount)

	res, _, err = s.handleGetReport(ctx, nil, GetReportParams{ReportID: "missing"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleDashboardStats(ctx, nil, DashboardParams{})
	require.NoError(t, err)
	stats := decodeResult[service.DashboardStats](t, res)
	assert.Equal(t, 2, stats.Total)
}

func TestGenerateInsight(t *testing.T) {
	ctx := context.Background()

	s := newTestServer(t, stubProvider{insight: &domain.Insight{
		DetailedAnalysis: "Mild anaemia.",
		ConciseSummary:   "Anaemia; deworm.",
	}})
	saved, err := s.reports.Save(ctx, s.reports.NewDraft())
	require.NoError(t, err)

	res, _, err := s.handleGenerateInsight(ctx, nil, GetReportParams{ReportID: saved.ID})
	require.NoError(t, err)
	out := decodeResult[InsightOutput](t, res)
	assert.Equal(t, saved.ID, out.ReportID)
	assert.Contains(t, out.Remarks, "Mild anaemia.")
	assert.Equal(t, "Anaemia; deworm.", out.ConciseSummary)

	stored, err := s.reports.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ConciseSummary, "saved reports are not modified")

	failing := newTestServer(t, stubProvider{err: errors.New("quota")})
	saved, err = failing.reports.Save(ctx, failing.reports.NewDraft())
	require.NoError(t, err)
	res, _, err = failing.handleGenerateInsight(ctx, nil, GetReportParams{ReportID: saved.ID})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), domain.ErrAIUnavailable)
}
