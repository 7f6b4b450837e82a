package guard

import "context"

// JobConfig is the per-call configuration handed to the Executor.
// MaximumBytesBilled of zero means no ceiling and is never sent on a
// billed run.
type JobConfig struct {
	DryRun             bool
	UseCache           bool
	MaximumBytesBilled int64
}

// RowIterator yields result rows until it returns iterator.Done.
type RowIterator interface {
	Next() (map[string]interface{}, error)
}

// JobResult is what the Executor reports for one job. Rows is nil for a
// dry run.
type JobResult struct {
	TotalBytesProcessed int64
	TotalBytesBilled    int64
	TotalRows           uint64
	Rows                RowIterator
}

// Executor runs a query against the warehouse.
type Executor interface {
	Run(ctx context.Context, query string, cfg JobConfig) (*JobResult, error)
}
