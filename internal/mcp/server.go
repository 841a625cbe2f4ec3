// Package mcp exposes the laboratory services as Model Context Protocol
// tools, resources and prompts over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/service"
)

// Server represents the lab desk MCP server
type Server struct {
	mcpServer *mcp.Server
	reports   *service.ReportService
	insights  *service.InsightService
	logger    *logrus.Logger
	tools     []string
	resources []string
	prompts   []string
}

// NewServer creates a new MCP server instance and registers every tool.
func NewServer(info domain.MCPConfig, reports *service.ReportService, insights *service.InsightService, logger *logrus.Logger) *Server {
	name := info.ServerName
	if name == "" {
		name = "caddl-lab-desk"
	}
	version := info.ServerVersion
	if version == "" {
		version = "v1.0.0"
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		reports:   reports,
		insights:  insights,
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// Tools lists the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Resources lists the URIs of the registered resources.
func (s *Server) Resources() []string {
	return append([]string(nil), s.resources...)
}

// Prompts lists the registered prompt names.
func (s *Server) Prompts() []string {
	return append([]string(nil), s.prompts...)
}

// Run serves on stdin/stdout until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves on an arbitrary transport.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	s.logger.WithField("tool_count", len(s.tools)).Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, t); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	addTool(s, "classify_result",
		"Decide whether a laboratory result value lies outside its printed reference range. Supports numeric intervals, <, >, <=, >= thresholds and Negative/Positive ranges.",
		s.handleClassifyResult)
	addTool(s, "list_catalog",
		"List the master test catalog: report sections and the investigations available in each, with units and normal ranges.",
		s.handleListCatalog)
	addTool(s, "list_reports",
		"List saved diagnostic reports, most recent first, with farmer, species, date and abnormal result count.",
		s.handleListReports)
	addTool(s, "get_report",
		"Fetch one saved diagnostic report with every result annotated as normal or abnormal.",
		s.handleGetReport)
	addTool(s, "dashboard_stats",
		"Summarise saved reports: total, last seven days, bovine and small ruminant counts, five most recent.",
		s.handleDashboardStats)
	addTool(s, "generate_insight",
		"Generate an AI clinical interpretation for a saved report. The report itself is not modified.",
		s.handleGenerateInsight)

	s.logger.WithField("tool_count", len(s.tools)).Info("Registered MCP tools")
}

func addTool[In any](s *Server, name, description string, handler mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: name, Description: description}, handler)
	s.tools = append(s.tools, name)
	s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
}
