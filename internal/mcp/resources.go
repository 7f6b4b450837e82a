package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"go-query-gateway/internal/datasource"
	"go-query-gateway/internal/guard"
)

const (
	markdownMIME      = "text/markdown"
	tablesURI         = "bigquery://tables"
	limitsURI         = "bigquery://limits"
	datasetsURI       = "bigquery://datasets"
	schemaURITemplate = "bigquery://table/{table_id}/schema"
	schemaURIPrefix   = "bigquery://table/"
	schemaURISuffix   = "/schema"
)

func markdown(uri, text string) *mcpsdk.ReadResourceResult {
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{{
			URI:      uri,
			MIMEType: markdownMIME,
			Text:     text,
		}},
	}
}

func (s *Server) readTables(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	return markdown(tablesURI, renderTables(s.guard.TablesReport())), nil
}

func (s *Server) readLimits(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	return markdown(limitsURI, renderLimits(s.guard.LimitsReport(), s.projectID)), nil
}

func (s *Server) readDatasets(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	return markdown(datasetsURI, renderDatasets(s.guard.DatasetsReport())), nil
}

// readTableSchema never fails the read: denials and fetch errors are
// rendered as Markdown.
func (s *Server) readTableSchema(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	uri := req.Params.URI
	tableID, ok := tableFromURI(uri)
	if !ok {
		return nil, mcpsdk.ResourceNotFoundError(uri)
	}

	schema, err := s.guard.TableSchema(ctx, tableID)
	switch {
	case guard.Kind(err) == "access_denied":
		return markdown(uri, fmt.Sprintf("# Access Denied\n\nTable '%s' is not in the allowed list.", tableID)), nil
	case err != nil:
		return markdown(uri, "# Error\n\nFailed to fetch schema: "+err.Error()), nil
	}
	return markdown(uri, renderSchema(schema)), nil
}

func tableFromURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, schemaURIPrefix) || !strings.HasSuffix(uri, schemaURISuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, schemaURIPrefix), schemaURISuffix)
	return id, id != ""
}

func renderTables(r guard.TablesReport) string {
	var b strings.Builder
	b.WriteString("# Available BigQuery Tables\n\n")
	fmt.Fprintf(&b, "Total accessible tables/patterns: %d\n\n", r.TotalTables)
	for _, t := range r.Tables {
		fmt.Fprintf(&b, "- `%s`\n", t)
	}
	b.WriteString("\n## Usage\n")
	b.WriteString("Use `get_table_schema(table_id)` tool to see detailed schema.\n")
	b.WriteString("Use `bq_query(query)` tool to query the data.\n")
	return b.String()
}

func renderLimits(r guard.LimitsReport, projectID string) string {
	bytes := float64(r.Limits.MaximumBytesBilled)

	var b strings.Builder
	b.WriteString("# BigQuery Query Limits\n\n")
	fmt.Fprintf(&b, "**Project:** %s\n\n", projectID)
	b.WriteString("## Current Limits\n\n")
	fmt.Fprintf(&b, "- **Max Results per Query:** %s rows\n", humanize.Comma(int64(r.Limits.MaxResults)))
	fmt.Fprintf(&b, "- **Max Bytes Billed:** %.0f MB (%.2f GB)\n\n", bytes/guard.BytesPerMB, bytes/guard.BytesPerGB)
	b.WriteString("## Cost Information\n\n")
	fmt.Fprintf(&b, "- **Rate:** %s\n", r.CostInfo.Rate)
	fmt.Fprintf(&b, "- **Protection:** %s\n", r.CostInfo.Note)
	b.WriteString("- **Confirmation:** Large queries require explicit confirmation\n\n")
	b.WriteString("## Configuration\n\n")
	b.WriteString("Adjust limits in `.env` file:\n")
	b.WriteString("```bash\n")
	b.WriteString("MAX_QUERY_RESULTS=10000\n")
	b.WriteString("MAX_BYTES_BILLED_MB=100\n")
	b.WriteString("```\n")
	return b.String()
}

func renderDatasets(r guard.DatasetsReport) string {
	var b strings.Builder
	b.WriteString("# Accessible BigQuery Datasets\n\n")

	if len(r.Datasets) > 0 {
		b.WriteString("## Datasets with Full Access\n\n")
		for _, d := range r.Datasets {
			fmt.Fprintf(&b, "### %s\n\n", d.ID)
			if d.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", d.Description)
			}
			if d.AllowAllTables {
				b.WriteString("- ✅ All tables accessible\n")
			}
			if len(d.BlacklistedTables) > 0 {
				fmt.Fprintf(&b, "- ⛔ Blacklisted: %s\n", strings.Join(d.BlacklistedTables, ", "))
			}
			b.WriteString("\n")
		}
	}

	if len(r.Tables) > 0 {
		b.WriteString("## Individual Tables\n\n")
		for _, t := range r.Tables {
			fmt.Fprintf(&b, "- `%s`\n", t)
		}
		b.WriteString("\n")
	}

	if len(r.Patterns) > 0 {
		b.WriteString("## Wildcard Patterns\n\n")
		for _, p := range r.Patterns {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderSchema(s *datasource.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Schema: %s\n\n", s.TableID)
	fmt.Fprintf(&b, "**Rows:** %s\n", humanize.Comma(int64(s.NumRows)))
	fmt.Fprintf(&b, "**Size:** %.2f GB\n", float64(s.NumBytes)/guard.BytesPerGB)
	fmt.Fprintf(&b, "**Created:** %s\n", formatTime(s.Created))
	fmt.Fprintf(&b, "**Modified:** %s\n\n", formatTime(s.Modified))

	if s.Description != "" {
		fmt.Fprintf(&b, "**Description:** %s\n\n", s.Description)
	}

	b.WriteString("## Fields\n\n")
	b.WriteString("| Field | Type | Mode | Description |\n")
	b.WriteString("|-------|------|------|-------------|\n")
	for _, f := range s.Schema {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", f.Name, f.Type, f.Mode, f.Description)
	}
	return b.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "Unknown"
	}
	return t.Format(time.RFC3339)
}
