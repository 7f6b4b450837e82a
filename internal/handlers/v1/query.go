package v1

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/guard"
	"go-query-gateway/internal/response"
)

const maxBodyBytes = 1 << 20

// QueryHandler exposes the guarded query operations over HTTP
type QueryHandler struct {
	guard   *guard.Guard
	metrics OutcomeRecorder
	logger  *zap.Logger
}

// NewQueryHandler creates a new query handler. metrics may be nil.
func NewQueryHandler(g *guard.Guard, metrics OutcomeRecorder, logger *zap.Logger) *QueryHandler {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &QueryHandler{
		guard:   g,
		metrics: metrics,
		logger:  logger,
	}
}

// Routes mounts the handler on r
func (h *QueryHandler) Routes(r chi.Router) {
	r.Post("/query", h.Execute)
	r.Post("/estimate-cost", h.EstimateCost)
	r.Post("/validate", h.Validate)
	r.Get("/tables", h.ListTables)
	r.Get("/tables/{tableID}/schema", h.TableSchema)
	r.Get("/datasets", h.ListDatasets)
	r.Get("/limits", h.Limits)
}

// QueryRequest represents a query request
type QueryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Confirmed  bool   `json:"confirmed"`
}

// EstimateResponse is a dry-run cost estimate
type EstimateResponse struct {
	Query string `json:"query"`
	guard.CostEstimate
	Note string `json:"note"`
}

// ValidateResponse reports the local checks only
type ValidateResponse struct {
	Valid   bool     `json:"valid"`
	Kind    string   `json:"kind,omitempty"`
	Message string   `json:"message,omitempty"`
	Tables  []string `json:"tables"`
}

// Execute runs a query through the guard. An over-limit query without
// confirmation answers 200 with requires_confirmation set.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeQuery(w, r, &req) {
		return
	}

	outcome, err := h.guard.RunGuarded(r.Context(), req.Query, req.MaxResults, req.Confirmed)
	if err != nil {
		h.metrics.RecordOutcome(writeGuardError(w, err))
		return
	}

	h.metrics.RecordOutcome(string(outcome.State))
	if outcome.State == guard.StateAwaitingConfirmation {
		response.Success(w, outcome.Confirmation, nil)
		return
	}
	response.Success(w, outcome.Result, &response.Meta{Total: outcome.Result.ReturnedRows})
}

// EstimateCost performs the checks and a dry run without executing
func (h *QueryHandler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeQuery(w, r, &req) {
		return
	}

	estimate, err := h.guard.EstimateCost(r.Context(), req.Query)
	if err != nil {
		writeGuardError(w, err)
		return
	}

	response.Success(w, EstimateResponse{
		Query:        req.Query,
		CostEstimate: *estimate,
		Note:         "Cost estimate based on " + guard.CostRate + ". Actual costs may vary.",
	}, nil)
}

// Validate runs the safety validators and the access policy without
// contacting BigQuery
func (h *QueryHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeQuery(w, r, &req) {
		return
	}

	resp := ValidateResponse{Valid: true, Tables: access.ExtractTables(req.Query)}
	if resp.Tables == nil {
		resp.Tables = []string{}
	}
	if err := h.guard.Check(req.Query); err != nil {
		resp.Valid = false
		resp.Kind = guard.Kind(err)
		resp.Message = err.Error()
	}
	response.Success(w, resp, nil)
}

// ListTables lists the tables and patterns the policy allows
func (h *QueryHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	report := h.guard.TablesReport()
	response.Success(w, report, &response.Meta{Total: report.TotalTables})
}

// TableSchema returns the schema of an allowed table
func (h *QueryHandler) TableSchema(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")

	schema, err := h.guard.TableSchema(r.Context(), tableID)
	if err != nil {
		h.logger.Warn("Table schema lookup failed",
			zap.String("table", tableID),
			zap.Error(err))
		writeGuardError(w, err)
		return
	}
	response.Success(w, schema, nil)
}

// ListDatasets describes the policy grouped by mechanism
func (h *QueryHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.guard.DatasetsReport(), nil)
}

// Limits reports the configured ceilings
func (h *QueryHandler) Limits(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.guard.LimitsReport(), nil)
}

func decodeQuery(w http.ResponseWriter, r *http.Request, req *QueryRequest) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		response.ErrorWithDetails(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(w, "query is required", http.StatusBadRequest)
		return false
	}
	return true
}
