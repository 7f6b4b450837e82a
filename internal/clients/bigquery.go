package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"go-query-gateway/internal/config"
	"go-query-gateway/internal/guard"
)

// BigQueryClient handles connections to Google BigQuery
type BigQueryClient struct {
	client *bigquery.Client
	config config.BigQueryConfig
	logger *zap.Logger
}

// NewBigQueryClient creates a new BigQuery client
func NewBigQueryClient(ctx context.Context, cfg config.BigQueryConfig, logger *zap.Logger) (*BigQueryClient, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("BigQuery project id is required (set BIGQUERY_PROJECT_ID or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	logger.Info("BigQuery client initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("location", cfg.Location))

	return &BigQueryClient{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// ProjectID returns the billing project
func (c *BigQueryClient) ProjectID() string {
	return c.config.ProjectID
}

// Run implements guard.Executor. A dry run reports the bytes the query would
// scan; a billed run waits for the job and returns a row iterator.
func (c *BigQueryClient) Run(ctx context.Context, sqlQuery string, cfg guard.JobConfig) (*guard.JobResult, error) {
	q := c.client.Query(sqlQuery)
	q.DryRun = cfg.DryRun
	q.DisableQueryCache = !cfg.UseCache
	if !cfg.DryRun && cfg.MaximumBytesBilled > 0 {
		q.MaxBytesBilled = cfg.MaximumBytesBilled
	}

	if cfg.DryRun {
		return c.dryRun(ctx, q)
	}
	return c.execute(ctx, q)
}

func (c *BigQueryClient) dryRun(ctx context.Context, q *bigquery.Query) (*guard.JobResult, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run failed: %w", err)
	}

	status := job.LastStatus()
	if status == nil {
		return nil, errors.New("dry run returned no job status")
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("dry run failed: %w", err)
	}

	var bytes int64
	if status.Statistics != nil {
		bytes = status.Statistics.TotalBytesProcessed
	}

	c.logger.Debug("BigQuery dry run",
		zap.String("job_id", job.ID()),
		zap.Int64("bytes_to_process", bytes))

	return &guard.JobResult{TotalBytesProcessed: bytes}, nil
}

func (c *BigQueryClient) execute(ctx context.Context, q *bigquery.Query) (*guard.JobResult, error) {
	start := time.Now()

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	result := &guard.JobResult{}
	if stats := status.Statistics; stats != nil {
		result.TotalBytesProcessed = stats.TotalBytesProcessed
		if qs, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			result.TotalBytesBilled = qs.TotalBytesBilled
		}
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	rows, err := newRowIterator(it)
	if err != nil {
		return nil, fmt.Errorf("error reading row: %w", err)
	}
	result.Rows = rows
	result.TotalRows = it.TotalRows

	c.logger.Info("BigQuery completed",
		zap.String("job_id", job.ID()),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("bytes_processed", result.TotalBytesProcessed),
		zap.Int64("bytes_billed", result.TotalBytesBilled),
		zap.Uint64("total_rows", result.TotalRows))

	return result, nil
}

// rowIterator adapts bigquery.RowIterator. The first row is fetched eagerly
// because TotalRows is only populated after the first page is read.
type rowIterator struct {
	it      *bigquery.RowIterator
	pending map[string]interface{}
	done    bool
}

func newRowIterator(it *bigquery.RowIterator) (*rowIterator, error) {
	r := &rowIterator{it: it}
	row, err := r.fetch()
	switch {
	case errors.Is(err, iterator.Done):
		r.done = true
	case err != nil:
		return nil, err
	default:
		r.pending = row
	}
	return r, nil
}

func (r *rowIterator) Next() (map[string]interface{}, error) {
	if r.pending != nil {
		row := r.pending
		r.pending = nil
		return row, nil
	}
	if r.done {
		return nil, iterator.Done
	}

	row, err := r.fetch()
	if errors.Is(err, iterator.Done) {
		r.done = true
	}
	return row, err
}

func (r *rowIterator) fetch() (map[string]interface{}, error) {
	var row map[string]bigquery.Value
	if err := r.it.Next(&row); err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(row))
	for k, v := range row {
		result[k] = convertBigQueryValue(v)
	}
	return result, nil
}

// TableMetadata fetches metadata for a dotted table id. A two-part id is
// resolved against the client's project.
func (c *BigQueryClient) TableMetadata(ctx context.Context, projectID, datasetID, tableID string) (*bigquery.TableMetadata, error) {
	if projectID == "" {
		projectID = c.config.ProjectID
	}
	return c.client.DatasetInProject(projectID, datasetID).Table(tableID).Metadata(ctx)
}

// TestConnection verifies credentials with a free dry run
func (c *BigQueryClient) TestConnection(ctx context.Context) error {
	q := c.client.Query("SELECT 1 as test")
	q.DryRun = true
	job, err := q.Run(ctx)
	if err != nil {
		return err
	}
	if status := job.LastStatus(); status != nil {
		return status.Err()
	}
	return nil
}

// Close closes the BigQuery client
func (c *BigQueryClient) Close() error {
	return c.client.Close()
}

// convertBigQueryValue converts BigQuery values to JSON-friendly Go types
func convertBigQueryValue(v bigquery.Value) interface{} {
	switch val := v.(type) {
	case []bigquery.Value:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = convertBigQueryValue(item)
		}
		return result
	case map[string]bigquery.Value:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[k] = convertBigQueryValue(item)
		}
		return result
	case *big.Rat:
		// NUMERIC and BIGNUMERIC
		if val == nil {
			return nil
		}
		return val.FloatString(9)
	default:
		return val
	}
}
