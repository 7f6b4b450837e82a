package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/config"
	"go-query-gateway/internal/datasource"
	"go-query-gateway/internal/guard"
	"go-query-gateway/internal/security"
)

const mb = int64(1024 * 1024)

type fakeExecutor struct {
	calls       int
	dryRunBytes int64
	rows        []map[string]interface{}
}

func (f *fakeExecutor) Run(_ context.Context, _ string, cfg guard.JobConfig) (*guard.JobResult, error) {
	f.calls++
	if cfg.DryRun {
		return &guard.JobResult{TotalBytesProcessed: f.dryRunBytes}, nil
	}
	return &guard.JobResult{
		TotalBytesProcessed: f.dryRunBytes,
		TotalRows:           uint64(len(f.rows)),
		Rows:                &rowSlice{rows: f.rows},
	}, nil
}

type rowSlice struct {
	rows []map[string]interface{}
}

func (s *rowSlice) Next() (map[string]interface{}, error) {
	if len(s.rows) == 0 {
		return nil, iterator.Done
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row, nil
}

type fakeSchemas struct {
	err error
}

func (f *fakeSchemas) TableSchema(_ context.Context, tableID string) (*datasource.TableSchema, error) {
	if f.err != nil {
		return nil, f.err
	}
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &datasource.TableSchema{
		TableID:     tableID,
		NumRows:     1234567,
		NumBytes:    2 << 30,
		Created:     &created,
		Description: "Liquor sales",
		Schema: []datasource.Field{
			{Name: "invoice", Type: "STRING", Mode: "REQUIRED", Description: "Invoice number"},
			{Name: "total", Type: "FLOAT", Mode: "NULLABLE"},
		},
	}, nil
}

func (f *fakeSchemas) TestConnection(context.Context) error { return nil }

func (f *fakeSchemas) GetType() datasource.SourceType { return datasource.SourceBigQuery }

func newTestServer(t *testing.T, exec guard.Executor, schemas datasource.SchemaSource) *Server {
	t.Helper()
	policy, err := config.ParseAccessConfig([]byte(`{
		"allowed_tables": ["bigquery-public-data.iowa_liquor_sales.sales"],
		"allowed_datasets": {
			"bigquery-public-data.austin_bikeshare": {
				"allow_all_tables": true,
				"blacklisted_tables": ["private"],
				"description": "Austin bike share trips"
			}
		},
		"allowed_patterns": ["proj.logs_*"]
	}`))
	require.NoError(t, err)

	g, err := guard.NewGuard(
		security.NewQueryValidator(nil),
		access.NewService(policy),
		exec,
		config.QueryLimits{MaxResults: 10000, MaximumBytesBilled: 100 * mb},
		zap.NewNop(),
		guard.WithSchemaSource(schemas),
	)
	require.NoError(t, err)

	return New(Config{ProjectID: "my-project"}, g, zap.NewNop())
}

func TestQueryCompleted(t *testing.T) {
	exec := &fakeExecutor{dryRunBytes: mb, rows: []map[string]interface{}{{"n": int64(1)}}}
	s := newTestServer(t, exec, &fakeSchemas{})

	result, out, err := s.handleQuery(context.Background(), &mcpsdk.CallToolRequest{}, QueryInput{
		Query: "SELECT COUNT(*) AS n FROM `bigquery-public-data.iowa_liquor_sales.sales`",
	})

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, string(guard.StateCompleted), out.State)
	require.NotNil(t, out.Result)
	assert.Nil(t, out.Confirmation)
	assert.Equal(t, 1, out.Result.ReturnedRows)
	assert.Equal(t, 2, exec.calls)
}

func TestQueryRequiresConfirmation(t *testing.T) {
	exec := &fakeExecutor{dryRunBytes: 500 * mb}
	s := newTestServer(t, exec, &fakeSchemas{})

	_, out, err := s.handleQuery(context.Background(), &mcpsdk.CallToolRequest{}, QueryInput{
		Query: "SELECT * FROM bigquery-public-data.austin_bikeshare.trips",
	})

	require.NoError(t, err)
	assert.Equal(t, string(guard.StateAwaitingConfirmation), out.State)
	require.NotNil(t, out.Confirmation)
	assert.True(t, out.Confirmation.RequiresConfirmation)
	assert.Contains(t, out.Confirmation.Instructions, "confirmed=true")
	assert.Equal(t, 1, exec.calls)
}

func TestQueryRejected(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestServer(t, exec, &fakeSchemas{})

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"not select", "UPDATE t SET a = 1", security.ErrNotReadOnly},
		{"blacklisted table", "SELECT * FROM bigquery-public-data.austin_bikeshare.private", access.ErrAccessDenied},
		{"unknown table", "SELECT * FROM other.ds.t", access.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.handleQuery(context.Background(), &mcpsdk.CallToolRequest{}, QueryInput{Query: tt.query})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, exec.calls)
}

func TestEstimate(t *testing.T) {
	exec := &fakeExecutor{dryRunBytes: 1 << 40}
	s := newTestServer(t, exec, &fakeSchemas{})

	_, out, err := s.handleEstimate(context.Background(), &mcpsdk.CallToolRequest{}, SQLInput{
		Query: "SELECT * FROM proj.logs_2024",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), out.BytesProcessed)
	assert.Equal(t, 5.0, out.EstimatedCostUSD)
	assert.Equal(t, 1024.0, out.GigabytesProcessed)
	assert.Equal(t, 1, exec.calls)
}

func TestEstimateWithoutBigQuery(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	_, _, err := s.handleEstimate(context.Background(), &mcpsdk.CallToolRequest{}, SQLInput{
		Query: "SELECT * FROM proj.logs_2024",
	})

	assert.ErrorIs(t, err, guard.ErrNoExecutor)
}

func TestValidate(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	result, out, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, SQLInput{
		Query: "SELECT * FROM proj.logs_web",
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, out.Valid)
	assert.Equal(t, []string{"proj.logs_web"}, out.Tables)

	result, out, err = s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, SQLInput{
		Query: "SELECT 1; DELETE FROM proj.logs_web",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.False(t, out.Valid)
	assert.Equal(t, "forbidden_keyword", out.Kind)
}

func TestListTablesAndLimits(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	_, tables, err := s.handleListTables(context.Background(), &mcpsdk.CallToolRequest{}, EmptyInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bigquery-public-data.iowa_liquor_sales.sales",
		"bigquery-public-data.austin_bikeshare.*",
		"proj.logs_*",
	}, tables.Tables)
	assert.Equal(t, 3, tables.TotalTables)

	_, limits, err := s.handleLimits(context.Background(), &mcpsdk.CallToolRequest{}, EmptyInput{})
	require.NoError(t, err)
	assert.Equal(t, 10000, limits.Limits.MaxResults)
	assert.Equal(t, 100.0, limits.Limits.MaximumBytesBilledMB)
	assert.Equal(t, 0.1, limits.Limits.MaximumBytesBilledGB)
}

func TestTableSchemaTool(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	_, schema, err := s.handleTableSchema(context.Background(), &mcpsdk.CallToolRequest{}, TableInput{
		TableID: "bigquery-public-data.iowa_liquor_sales.sales",
	})
	require.NoError(t, err)
	assert.Len(t, schema.Schema, 2)

	_, _, err = s.handleTableSchema(context.Background(), &mcpsdk.CallToolRequest{}, TableInput{
		TableID: "bigquery-public-data.austin_bikeshare.private",
	})
	assert.ErrorIs(t, err, access.ErrAccessDenied)
}

func readResource(t *testing.T, s *Server, uri string, read func(context.Context, *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error)) string {
	t.Helper()
	res, err := read(context.Background(), &mcpsdk.ReadResourceRequest{
		Params: &mcpsdk.ReadResourceParams{URI: uri},
	})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, markdownMIME, res.Contents[0].MIMEType)
	return res.Contents[0].Text
}

func TestTablesResource(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	text := readResource(t, s, tablesURI, s.readTables)

	assert.True(t, strings.HasPrefix(text, "# Available BigQuery Tables\n\n"))
	assert.Contains(t, text, "Total accessible tables/patterns: 3")
	assert.Contains(t, text, "- `bigquery-public-data.austin_bikeshare.*`\n")
}

func TestLimitsResource(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	text := readResource(t, s, limitsURI, s.readLimits)

	assert.Contains(t, text, "**Project:** my-project")
	assert.Contains(t, text, "- **Max Results per Query:** 10,000 rows")
	assert.Contains(t, text, "- **Max Bytes Billed:** 100 MB (0.10 GB)")
	assert.Contains(t, text, "$5.00 per TB (US region)")
}

func TestDatasetsResource(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	text := readResource(t, s, datasetsURI, s.readDatasets)

	assert.Contains(t, text, "### bigquery-public-data.austin_bikeshare\n\nAustin bike share trips\n\n")
	assert.Contains(t, text, "- ✅ All tables accessible\n")
	assert.Contains(t, text, "- ⛔ Blacklisted: private\n")
	assert.Contains(t, text, "## Individual Tables\n\n- `bigquery-public-data.iowa_liquor_sales.sales`\n")
	assert.Contains(t, text, "## Wildcard Patterns\n\n- `proj.logs_*`\n")
}

func TestTableSchemaResource(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		s := newTestServer(t, nil, &fakeSchemas{})
		text := readResource(t, s, "bigquery://table/bigquery-public-data.iowa_liquor_sales.sales/schema", s.readTableSchema)

		assert.Contains(t, text, "# Schema: bigquery-public-data.iowa_liquor_sales.sales")
		assert.Contains(t, text, "**Rows:** 1,234,567")
		assert.Contains(t, text, "**Size:** 2.00 GB")
		assert.Contains(t, text, "**Created:** 2024-05-01T12:00:00Z")
		assert.Contains(t, text, "**Modified:** Unknown")
		assert.Contains(t, text, "| invoice | STRING | REQUIRED | Invoice number |")
	})

	t.Run("denied", func(t *testing.T) {
		s := newTestServer(t, nil, &fakeSchemas{})
		text := readResource(t, s, "bigquery://table/other.ds.t/schema", s.readTableSchema)

		assert.Equal(t, "# Access Denied\n\nTable 'other.ds.t' is not in the allowed list.", text)
	})

	t.Run("fetch error", func(t *testing.T) {
		s := newTestServer(t, nil, &fakeSchemas{err: errors.New("boom")})
		text := readResource(t, s, "bigquery://table/proj.logs_x/schema", s.readTableSchema)

		assert.True(t, strings.HasPrefix(text, "# Error\n\nFailed to fetch schema: "))
		assert.Contains(t, text, "boom")
	})

	t.Run("malformed uri", func(t *testing.T) {
		s := newTestServer(t, nil, &fakeSchemas{})
		_, err := s.readTableSchema(context.Background(), &mcpsdk.ReadResourceRequest{
			Params: &mcpsdk.ReadResourceParams{URI: "bigquery://table//schema"},
		})
		assert.Error(t, err)
	})
}

func TestTableSchemaToolTimestamps(t *testing.T) {
	s := newTestServer(t, nil, &fakeSchemas{})

	_, schema, err := s.handleTableSchema(context.Background(), &mcpsdk.CallToolRequest{}, TableInput{
		TableID: "proj.logs_a",
	})

	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", schema.Created)
	assert.Empty(t, schema.Modified)
	assert.Equal(t, uint64(1234567), schema.NumRows)
}
