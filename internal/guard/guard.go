// Package guard runs a query through the safety checks, the table access
// policy and a dry-run cost check before anything is billed.
//
// Confirmation is stateless: an over-limit query is answered with a cost
// estimate, and the caller resubmits the same text with confirmed set.
// Every call re-runs every check.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/config"
	"go-query-gateway/internal/datasource"
	"go-query-gateway/internal/security"
)

// DefaultMaxResults applies when a caller does not ask for a row count.
const DefaultMaxResults = 1000

// State is a step of a single guarded submission.
type State string

const (
	StateReceived             State = "received"
	StateSafetyChecked        State = "safety_checked"
	StateAuthorizationChecked State = "authorization_checked"
	StateCostEstimated        State = "cost_estimated"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Confirmation is returned instead of rows when the dry run exceeds the
// billing limit and the caller has not confirmed.
type Confirmation struct {
	RequiresConfirmation bool         `json:"requires_confirmation"`
	Message              string       `json:"message"`
	CostEstimate         CostEstimate `json:"cost_estimate"`
	Instructions         string       `json:"instructions"`
	Query                string       `json:"query"`
	Suggestions          []string     `json:"suggestions,omitempty"`
}

// Result is a completed execution.
type Result struct {
	TotalRows      uint64                   `json:"total_rows"`
	ReturnedRows   int                      `json:"returned_rows"`
	Rows           []map[string]interface{} `json:"rows"`
	BytesProcessed int64                    `json:"bytes_processed"`
	BytesBilled    int64                    `json:"bytes_billed"`
	CostEstimate   CostEstimate             `json:"cost_estimate"`
}

// Outcome holds exactly one of Confirmation or Result, matching State.
type Outcome struct {
	State        State
	Confirmation *Confirmation
	Result       *Result
}

// Option configures optional collaborators.
type Option func(*Guard)

// WithSchemaSource enables TableSchema lookups.
func WithSchemaSource(src datasource.SchemaSource) Option {
	return func(g *Guard) {
		g.schemas = src
	}
}

// Guard composes the validator, the access service and the executor.
// It holds no per-call state and is safe for concurrent use.
type Guard struct {
	validator *security.QueryValidator
	access    *access.Service
	executor  Executor
	schemas   datasource.SchemaSource
	limits    config.QueryLimits
	logger    *zap.Logger
}

// NewGuard rejects limits that would leave billing unbounded. A nil executor
// is allowed for local checks; EstimateCost and RunGuarded then fail with
// ErrNoExecutor.
func NewGuard(
	validator *security.QueryValidator,
	accessSvc *access.Service,
	executor Executor,
	limits config.QueryLimits,
	logger *zap.Logger,
	opts ...Option,
) (*Guard, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query limits: %w", err)
	}
	if validator == nil {
		validator = security.NewQueryValidator(nil)
	}
	if accessSvc == nil {
		accessSvc = access.NewService(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Guard{
		validator: validator,
		access:    accessSvc,
		executor:  executor,
		limits:    limits,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckSafety runs the safety validators only.
func (g *Guard) CheckSafety(query string) security.Result {
	return g.validator.Validate(query)
}

// CheckAuthorization fails with an *access.AccessDeniedError on the first
// table outside the policy.
func (g *Guard) CheckAuthorization(query string) error {
	return g.access.ValidateQueryTables(query)
}

// Check runs safety then authorization without contacting the warehouse.
func (g *Guard) Check(query string) error {
	if err := g.validator.Check(query); err != nil {
		return err
	}
	return g.access.ValidateQueryTables(query)
}

// EstimateCost validates the query and dry-runs it.
func (g *Guard) EstimateCost(ctx context.Context, query string) (*CostEstimate, error) {
	if err := g.Check(query); err != nil {
		g.reject(query, err)
		return nil, err
	}

	bytes, err := g.dryRun(ctx, query)
	if err != nil {
		return nil, err
	}

	estimate := NewCostEstimate(bytes)
	g.logger.Info("Query cost estimated",
		zap.String("query", truncateQuery(query)),
		zap.Int64("bytes_to_process", bytes),
		zap.Float64("estimated_cost_usd", estimate.EstimatedCostUSD))

	return &estimate, nil
}

// RunGuarded executes query when it passes every check and either fits under
// the billing limit or confirmed is set. maxResults <= 0 selects the smaller
// of DefaultMaxResults and the configured ceiling.
func (g *Guard) RunGuarded(ctx context.Context, query string, maxResults int, confirmed bool) (*Outcome, error) {
	g.transition(StateReceived, query)

	if maxResults > g.limits.MaxResults {
		err := &LimitError{Requested: maxResults, Max: g.limits.MaxResults}
		g.reject(query, err)
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = min(DefaultMaxResults, g.limits.MaxResults)
	}

	if err := g.validator.Check(query); err != nil {
		g.reject(query, err)
		return nil, err
	}
	g.transition(StateSafetyChecked, query)

	if err := g.access.ValidateQueryTables(query); err != nil {
		g.reject(query, err)
		return nil, err
	}
	g.transition(StateAuthorizationChecked, query)

	bytes, err := g.dryRun(ctx, query)
	if err != nil {
		return nil, err
	}
	estimate := NewCostEstimate(bytes)
	g.transition(StateCostEstimated, query)

	exceeds := bytes > g.limits.MaximumBytesBilled
	if exceeds && !confirmed {
		g.transition(StateAwaitingConfirmation, query)
		g.logger.Info("Query requires confirmation",
			zap.String("query", truncateQuery(query)),
			zap.Int64("bytes_to_process", bytes),
			zap.Int64("limit_bytes", g.limits.MaximumBytesBilled),
			zap.Float64("estimated_cost_usd", estimate.EstimatedCostUSD))

		estimate.LimitMB = g.limits.MaximumBytesBilledMB()
		return &Outcome{
			State: StateAwaitingConfirmation,
			Confirmation: &Confirmation{
				RequiresConfirmation: true,
				Message:              "Query exceeds billing limits. Review cost and confirm to proceed.",
				CostEstimate:         estimate,
				Instructions:         confirmationInstructions(bytes),
				Query:                query,
				Suggestions:          Suggestions(query),
			},
		}, nil
	}

	ceiling := g.limits.MaximumBytesBilled
	if exceeds {
		ceiling = bytes
	}

	result, err := g.execute(ctx, query, ceiling, maxResults)
	if err != nil {
		return nil, err
	}
	result.CostEstimate = estimate

	return &Outcome{State: StateCompleted, Result: result}, nil
}

func (g *Guard) dryRun(ctx context.Context, query string) (int64, error) {
	if g.executor == nil {
		return 0, ErrNoExecutor
	}

	job, err := g.executor.Run(ctx, query, JobConfig{DryRun: true, UseCache: false})
	if err != nil {
		return 0, g.fail(query, err)
	}
	return job.TotalBytesProcessed, nil
}

func (g *Guard) execute(ctx context.Context, query string, ceiling int64, maxResults int) (*Result, error) {
	g.transition(StateExecuting, query)
	start := time.Now()

	job, err := g.executor.Run(ctx, query, JobConfig{UseCache: true, MaximumBytesBilled: ceiling})
	if err != nil {
		return nil, g.fail(query, err)
	}

	rows := make([]map[string]interface{}, 0)
	if job.Rows != nil {
		for len(rows) < maxResults {
			row, err := job.Rows.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return nil, g.fail(query, err)
			}
			rows = append(rows, row)
		}
	}

	g.transition(StateCompleted, query)
	g.logger.Info("Query completed",
		zap.String("query", truncateQuery(query)),
		zap.Int64("bytes_processed", job.TotalBytesProcessed),
		zap.Int64("bytes_billed", job.TotalBytesBilled),
		zap.Int64("ceiling", ceiling),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		TotalRows:      job.TotalRows,
		ReturnedRows:   len(rows),
		Rows:           rows,
		BytesProcessed: job.TotalBytesProcessed,
		BytesBilled:    job.TotalBytesBilled,
	}, nil
}

// TableSchema checks the identifier's shape and the policy before looking
// it up. A backtick-quoted id is unwrapped.
func (g *Guard) TableSchema(ctx context.Context, tableID string) (*datasource.TableSchema, error) {
	tableID, err := security.ValidateTableID(tableID)
	if err != nil {
		return nil, err
	}
	if !g.access.IsTableAllowed(tableID) {
		return nil, &access.AccessDeniedError{Table: tableID}
	}
	if g.schemas == nil {
		return nil, ErrNoSchema
	}

	schema, err := g.schemas.TableSchema(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("error fetching schema for table '%s': %w", tableID, ClassifyExecutionError(err))
	}
	return schema, nil
}

// ListAllowedTables describes the policy for listings.
func (g *Guard) ListAllowedTables() []string {
	return g.access.AllowedTables()
}

// Policy returns the access configuration in use.
func (g *Guard) Policy() *config.AccessConfig {
	return g.access.Config()
}

// Limits returns the configured ceilings.
func (g *Guard) Limits() config.QueryLimits {
	return g.limits
}

func (g *Guard) transition(s State, query string) {
	g.logger.Debug("Query state", zap.String("state", string(s)), zap.String("query", truncateQuery(query)))
}

func (g *Guard) reject(query string, err error) {
	g.transition(StateFailed, query)
	g.logger.Warn("Query rejected",
		zap.String("kind", Kind(err)),
		zap.String("query", truncateQuery(query)),
		zap.Error(err))
}

func (g *Guard) fail(query string, err error) error {
	execErr := ClassifyExecutionError(err)
	g.transition(StateFailed, query)
	g.logger.Error("Query execution failed",
		zap.String("kind", string(execErr.Kind)),
		zap.String("query", truncateQuery(query)),
		zap.Error(err))
	return execErr
}

// Kind names the taxonomy bucket of err for logs and transport error codes.
func Kind(err error) string {
	var execErr *ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, security.ErrNotReadOnly):
		return "not_read_only"
	case errors.Is(err, security.ErrForbiddenKeyword):
		return "forbidden_keyword"
	case errors.Is(err, security.ErrMultiStatement):
		return "multi_statement"
	case errors.Is(err, security.ErrInvalidTableID):
		return "invalid_table_id"
	case errors.Is(err, access.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.As(err, &execErr):
		return string(execErr.Kind)
	case errors.Is(err, ErrNoExecutor), errors.Is(err, ErrNoSchema):
		return "unavailable"
	}
	return "internal"
}
