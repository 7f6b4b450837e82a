// Package access decides which BigQuery tables a query may read.
//
// A policy combines three mechanisms with OR semantics: an explicit table
// list, dataset grants with per-dataset blacklists, and wildcard patterns.
// Table references are pulled out of query text with a lexical FROM/JOIN
// scan, not a SQL parser.
package access

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go-query-gateway/internal/config"
)

// ErrAccessDenied is matched by every AccessDeniedError.
var ErrAccessDenied = errors.New("table access denied")

// AccessDeniedError names the first table that failed authorization.
type AccessDeniedError struct {
	Table string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("Table '%s' is not allowed. Check allowed_tables, allowed_datasets, or allowed_patterns.", e.Table)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}

// tableRefPattern captures the token after FROM or JOIN: word characters,
// hyphens and dots, optionally wrapped in backticks or double quotes.
var tableRefPattern = regexp.MustCompile("(?i)\\b(?:from|join)\\s+([`\"]?[\\w\\-.]+[`\"]?)")

// Service authorizes table access against a single immutable policy.
type Service struct {
	cfg      *config.AccessConfig
	strategy *CompositeStrategy
}

// NewService builds the composite strategy from whichever mechanisms have
// configuration. The policy must not be mutated afterwards.
func NewService(cfg *config.AccessConfig) *Service {
	if cfg == nil {
		cfg = &config.AccessConfig{}
	}
	return &Service{
		cfg:      cfg,
		strategy: buildStrategy(cfg),
	}
}

func buildStrategy(cfg *config.AccessConfig) *CompositeStrategy {
	var strategies []Strategy

	if len(cfg.AllowedTables) > 0 {
		strategies = append(strategies, NewExplicitStrategy(cfg.AllowedTables))
	}
	if len(cfg.AllowedDatasets) > 0 {
		strategies = append(strategies, NewDatasetStrategy(cfg.AllowedDatasets))
	}
	if len(cfg.AllowedPatterns) > 0 {
		strategies = append(strategies, NewPatternStrategy(cfg.AllowedPatterns))
	}

	return NewCompositeStrategy(strategies...)
}

// IsTableAllowed reports whether the identifier may be queried.
func (s *Service) IsTableAllowed(tableID string) bool {
	return s.strategy.IsAllowed(ParseTableReference(tableID))
}

// ValidateQueryTables fails on the first referenced table that is not allowed.
func (s *Service) ValidateQueryTables(query string) error {
	for _, table := range ExtractTables(query) {
		if !s.IsTableAllowed(table) {
			return &AccessDeniedError{Table: table}
		}
	}
	return nil
}

// AllowedTables lists explicit tables, then "<dataset>.*" for each dataset,
// then the raw patterns.
func (s *Service) AllowedTables() []string {
	datasets := s.cfg.DatasetIDs()
	out := make([]string, 0, len(s.cfg.AllowedTables)+len(datasets)+len(s.cfg.AllowedPatterns))

	out = append(out, s.cfg.AllowedTables...)
	for _, id := range datasets {
		out = append(out, id+".*")
	}
	out = append(out, s.cfg.AllowedPatterns...)

	return out
}

// Config returns the policy the service was built from.
func (s *Service) Config() *config.AccessConfig {
	return s.cfg
}

// ExtractTables returns every table token following FROM or JOIN, in query
// order, with wrapping quotes and whitespace removed.
func ExtractTables(query string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(query, -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, strings.TrimSpace(strings.Trim(m[1], "`\"")))
	}
	return tables
}
