// Package mcp exposes the query guard as Model Context Protocol tools and
// Markdown resources over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"go-query-gateway/internal/guard"
)

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	ProjectID string
}

// Server wraps the MCP SDK server around a guard.
type Server struct {
	mcpServer *mcpsdk.Server
	guard     *guard.Guard
	projectID string
	logger    *zap.Logger
}

// New creates an MCP server with all tools and resources registered. The
// logger must not write to stdout, which carries the protocol.
func New(cfg Config, g *guard.Guard, logger *zap.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "go-query-gateway"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	s := &Server{
		guard:     g,
		projectID: cfg.ProjectID,
		logger:    logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s
}

// Run serves on stdio. Blocks until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting on stdio")
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "bq_query",
		Description: "Run read-only SELECT queries on allowed BigQuery tables. " +
			"A dry run estimates the cost first; queries over the billing limit return a cost estimate " +
			"and must be resubmitted with confirmed=true.",
	}, s.handleQuery)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "estimate_query_cost",
		Description: "Estimate the cost of a query without executing it (dry-run).",
	}, s.handleEstimate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_tables",
		Description: "List all available BigQuery tables that can be queried.",
	}, s.handleListTables)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_table_schema",
		Description: "Get the schema of a specific BigQuery table.",
	}, s.handleTableSchema)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_query_limits",
		Description: "Get current BigQuery query limits and configuration.",
	}, s.handleLimits)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "validate_query",
		Description: "Check a query against the safety rules and the table access policy without running it.",
	}, s.handleValidate)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcpsdk.Resource{
		URI:         tablesURI,
		Name:        "tables",
		Description: "Available BigQuery tables",
		MIMEType:    markdownMIME,
	}, s.readTables)

	s.mcpServer.AddResource(&mcpsdk.Resource{
		URI:         limitsURI,
		Name:        "limits",
		Description: "Current query limits",
		MIMEType:    markdownMIME,
	}, s.readLimits)

	s.mcpServer.AddResource(&mcpsdk.Resource{
		URI:         datasetsURI,
		Name:        "datasets",
		Description: "Accessible datasets",
		MIMEType:    markdownMIME,
	}, s.readDatasets)

	s.mcpServer.AddResourceTemplate(&mcpsdk.ResourceTemplate{
		URITemplate: schemaURITemplate,
		Name:        "table-schema",
		Description: "Schema of an allowed table",
		MIMEType:    markdownMIME,
	}, s.readTableSchema)
}
