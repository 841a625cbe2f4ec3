package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
)

// ClassifyResultParams defines parameters for classify_result tool
type ClassifyResultParams struct {
	Value       string `json:"value" jsonschema:"the observed result, e.g. 16.2, Positive or 1,200"`
	NormalRange string `json:"normal_range" jsonschema:"the printed reference range, e.g. 8.0 - 15.0 or < 5"`
}

// ClassifyResultOutput is the classify_result answer.
type ClassifyResultOutput struct {
	Abnormal bool   `json:"abnormal"`
	Kind     string `json:"kind"`
}

// ListCatalogParams defines parameters for list_catalog tool
type ListCatalogParams struct {
	Category string `json:"category,omitempty" jsonschema:"restrict the listing to one section key"`
}

// ListReportsParams defines parameters for list_reports tool
type ListReportsParams struct {
	Species string `json:"species,omitempty" jsonschema:"only reports for this species"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of reports to return"`
}

// GetReportParams defines parameters for get_report and generate_insight
type GetReportParams struct {
	ReportID string `json:"report_id" jsonschema:"id of a saved report"`
}

// DashboardParams is empty; dashboard_stats takes no input.
type DashboardParams struct{}

// InsightOutput is the generate_insight answer.
type InsightOutput struct {
	ReportID       string `json:"report_id"`
	Remarks        string `json:"remarks"`
	ConciseSummary string `json:"concise_summary"`
}

type catalogSection struct {
	Key   domain.CategoryKey            `json:"key"`
	Label string                        `json:"label"`
	Tests []domain.MasterTestDefinition `json:"tests"`
}

func (s *Server) handleClassifyResult(ctx context.Context, req *mcp.CallToolRequest, params ClassifyResultParams) (*mcp.CallToolResult, any, error) {
	s.logToolCall("classify_result")
	if strings.TrimSpace(params.NormalRange) == "" {
		return errorResult("normal_range is required"), nil, nil
	}
	classifier := s.reports.Classifier()
	out := ClassifyResultOutput{
		Abnormal: classifier.IsAbnormal(params.Value, params.NormalRange),
		Kind:     classifier.Kind(params.NormalRange).String(),
	}
	return jsonResult(out)
}

func (s *Server) handleListCatalog(ctx context.Context, req *mcp.CallToolRequest, params ListCatalogParams) (*mcp.CallToolResult, any, error) {
	s.logToolCall("list_catalog")
	cat := s.reports.Catalog()

	var sections []catalogSection
	for _, category := range cat.Categories() {
		if params.Category != "" && string(category.Key) != params.Category {
			continue
		}
		sections = append(sections, catalogSection{
			Key:   category.Key,
			Label: category.Label,
			Tests: cat.ForCategory(category.Key),
		})
	}
	if params.Category != "" && len(sections) == 0 {
		return errorResult(fmt.Sprintf("unknown category %q", params.Category)), nil, nil
	}
	return jsonResult(sections)
}

func (s *Server) handleListReports(ctx context.Context, req *mcp.CallToolRequest, params ListReportsParams) (*mcp.CallToolResult, any, error) {
	s.logToolCall("list_reports")
	summaries, err := s.reports.Summaries(ctx)
	if err != nil {
		return toolError(err), nil, nil
	}

	out := summaries[:0:0]
	for _, summary := range summaries {
		if params.Species != "" && !strings.EqualFold(string(summary.Species), params.Species) {
			continue
		}
		out = append(out, summary)
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return jsonResult(out)
}

func (s *Server) handleGetReport(ctx context.Context, req *mcp.CallToolRequest, params GetReportParams) (*mcp.CallToolResult, any, error) {
	s.logToolCall("get_report")
	annotated, err := s.reports.Annotated(ctx, params.ReportID)
	if err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(annotated)
}

func (s *Server) handleDashboardStats(ctx context.Context, req *mcp.CallToolRequest, params DashboardParams) (*mcp.CallToolResult, any, error) {
	s.logToolCall("dashboard_stats")
	stats, err := s.reports.Dashboard(ctx)
	if err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(stats)
}

func (s *Server) handleGenerateInsight(ctx context.Context, req *mcp.CallToolRequest, params GetReportParams) (*mcp.CallToolResult, any, error) {
	s.logToolCall("generate_insight")
	report, err := s.reports.Get(ctx, params.ReportID)
	if err != nil {
		return toolError(err), nil, nil
	}
	enriched, err := s.insights.Enrich(ctx, report)
	if err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(InsightOutput{
		ReportID:       enriched.ID,
		Remarks:        enriched.OtherRemarks,
		ConciseSummary: enriched.ConciseSummary,
	})
}

func (s *Server) logToolCall(tool string) {
	s.logger.WithFields(logrus.Fields{"tool": tool}).Info("Tool invoked")
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

// toolError renders a service error for the model. LabErrors keep their
// code so the caller can tell a missing report from an AI outage.
func toolError(err error) *mcp.CallToolResult {
	var le *domain.LabError
	if errors.As(err, &le) {
		return errorResult(fmt.Sprintf("%s: %s", le.Code, le.Message))
	}
	return errorResult(err.Error())
}
