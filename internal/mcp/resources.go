package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/caddl-lab-desk/pkg/external"
)

// Resource URIs served by the lab desk.
const (
	CatalogURI   = "caddl://catalog"
	DashboardURI = "caddl://dashboard"
)

func (s *Server) registerResources() {
	s.addResource(&mcp.Resource{
		URI:         CatalogURI,
		Name:        "test-catalog",
		Description: "Master test catalog grouped by report section",
		MIMEType:    "application/json",
	}, s.readCatalog)
	s.addResource(&mcp.Resource{
		URI:         DashboardURI,
		Name:        "dashboard",
		Description: "Headline report statistics",
		MIMEType:    "application/json",
	}, s.readDashboard)
}

func (s *Server) addResource(r *mcp.Resource, handler mcp.ResourceHandler) {
	s.mcpServer.AddResource(r, handler)
	s.resources = append(s.resources, r.URI)
}

func (s *Server) readCatalog(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	cat := s.reports.Catalog()
	sections := make([]catalogSection, 0, len(cat.Categories()))
	for _, category := range cat.Categories() {
		sections = append(sections, catalogSection{
			Key:   category.Key,
			Label: category.Label,
			Tests: cat.ForCategory(category.Key),
		})
	}
	return jsonResource(CatalogURI, sections)
}

func (s *Server) readDashboard(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	stats, err := s.reports.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(DashboardURI, stats)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}

// ReviewPrompt is the name of the report review prompt.
const ReviewPrompt = "review_report"

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        ReviewPrompt,
		Description: "Ask for a veterinary clinical interpretation of a saved report",
		Arguments: []*mcp.PromptArgument{
			{Name: "report_id", Description: "id of a saved report", Required: true},
		},
	}, s.getReviewPrompt)
	s.prompts = append(s.prompts, ReviewPrompt)
}

func (s *Server) getReviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := req.Params.Arguments["report_id"]
	if id == "" {
		return nil, fmt.Errorf("report_id is required")
	}
	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text := external.BuildInsightPrompt(report, s.reports.Catalog().Keys())

	s.logger.WithField("report_id", id).Debug("Rendered review prompt")
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Clinical review of %s (%s)", report.DisplayID(), report.Species),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}, nil
}
