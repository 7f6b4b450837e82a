package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/datasource"
	"go-query-gateway/internal/guard"
)

// --- Input/Output types ---

// QueryInput defines parameters for the bq_query tool.
type QueryInput struct {
	Query      string `json:"query" jsonschema:"SELECT statement to run"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum rows to return (default 1000)"`
	Confirmed  bool   `json:"confirmed,omitempty" jsonschema:"set after reviewing a cost estimate to run an over-limit query"`
}

// QueryOutput holds either a confirmation request or the result rows.
type QueryOutput struct {
	State        string              `json:"state"`
	Confirmation *guard.Confirmation `json:"confirmation,omitempty"`
	Result       *guard.Result       `json:"result,omitempty"`
}

// SQLInput is a single query.
type SQLInput struct {
	Query string `json:"query" jsonschema:"SELECT statement"`
}

// EstimateOutput is a dry-run estimate.
type EstimateOutput struct {
	Query              string  `json:"query"`
	BytesProcessed     int64   `json:"bytes_processed"`
	MegabytesProcessed float64 `json:"megabytes_processed"`
	GigabytesProcessed float64 `json:"gigabytes_processed"`
	EstimatedCostUSD   float64 `json:"estimated_cost_usd"`
	Note               string  `json:"note"`
}

// ValidateOutput reports the local checks.
type ValidateOutput struct {
	Valid   bool     `json:"valid"`
	Kind    string   `json:"kind,omitempty"`
	Message string   `json:"message,omitempty"`
	Tables  []string `json:"tables"`
}

// TableInput names one table.
type TableInput struct {
	TableID string `json:"table_id" jsonschema:"fully qualified table id, project.dataset.table"`
}

// SchemaOutput is a table schema with timestamps rendered as RFC 3339.
type SchemaOutput struct {
	TableID     string             `json:"table_id"`
	NumRows     uint64             `json:"num_rows"`
	NumBytes    int64              `json:"num_bytes"`
	Created     string             `json:"created,omitempty"`
	Modified    string             `json:"modified,omitempty"`
	Description string             `json:"description"`
	Schema      []datasource.Field `json:"schema"`
}

// EmptyInput is for tools without parameters.
type EmptyInput struct{}

func (s *Server) handleQuery(ctx context.Context, req *mcpsdk.CallToolRequest, input QueryInput) (*mcpsdk.CallToolResult, QueryOutput, error) {
	outcome, err := s.guard.RunGuarded(ctx, input.Query, input.MaxResults, input.Confirmed)
	if err != nil {
		s.logger.Debug("bq_query rejected", zap.String("kind", guard.Kind(err)))
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		State:        string(outcome.State),
		Confirmation: outcome.Confirmation,
		Result:       outcome.Result,
	}, nil
}

func (s *Server) handleEstimate(ctx context.Context, req *mcpsdk.CallToolRequest, input SQLInput) (*mcpsdk.CallToolResult, EstimateOutput, error) {
	estimate, err := s.guard.EstimateCost(ctx, input.Query)
	if err != nil {
		return nil, EstimateOutput{}, err
	}

	return nil, EstimateOutput{
		Query:              input.Query,
		BytesProcessed:     estimate.BytesToProcess,
		MegabytesProcessed: estimate.Megabytes,
		GigabytesProcessed: estimate.Gigabytes,
		EstimatedCostUSD:   estimate.EstimatedCostUSD,
		Note:               "Cost estimate based on " + guard.CostRate + ". Actual costs may vary.",
	}, nil
}

func (s *Server) handleListTables(ctx context.Context, req *mcpsdk.CallToolRequest, input EmptyInput) (*mcpsdk.CallToolResult, guard.TablesReport, error) {
	return nil, s.guard.TablesReport(), nil
}

func (s *Server) handleTableSchema(ctx context.Context, req *mcpsdk.CallToolRequest, input TableInput) (*mcpsdk.CallToolResult, SchemaOutput, error) {
	schema, err := s.guard.TableSchema(ctx, input.TableID)
	if err != nil {
		return nil, SchemaOutput{}, err
	}

	out := SchemaOutput{
		TableID:     schema.TableID,
		NumRows:     schema.NumRows,
		NumBytes:    schema.NumBytes,
		Description: schema.Description,
		Schema:      schema.Schema,
	}
	if schema.Created != nil {
		out.Created = schema.Created.Format(time.RFC3339)
	}
	if schema.Modified != nil {
		out.Modified = schema.Modified.Format(time.RFC3339)
	}
	if out.Schema == nil {
		out.Schema = []datasource.Field{}
	}
	return nil, out, nil
}

func (s *Server) handleLimits(ctx context.Context, req *mcpsdk.CallToolRequest, input EmptyInput) (*mcpsdk.CallToolResult, guard.LimitsReport, error) {
	return nil, s.guard.LimitsReport(), nil
}

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input SQLInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	out := ValidateOutput{Valid: true, Tables: access.ExtractTables(input.Query)}
	if out.Tables == nil {
		out.Tables = []string{}
	}
	if err := s.guard.Check(input.Query); err != nil {
		out.Valid = false
		out.Kind = guard.Kind(err)
		out.Message = err.Error()
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}
