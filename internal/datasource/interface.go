package datasource

import (
	"context"
	"time"
)

// SourceType names the backend a schema came from
type SourceType string

const (
	SourceBigQuery SourceType = "BIGQUERY"
)

// Field is one column of a table. Nested RECORD fields are flattened with
// dotted names, parents first.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
}

// TableSchema is the metadata returned by a schema lookup
type TableSchema struct {
	TableID     string     `json:"table_id"`
	NumRows     uint64     `json:"num_rows"`
	NumBytes    int64      `json:"num_bytes"`
	Created     *time.Time `json:"created"`
	Modified    *time.Time `json:"modified"`
	Description string     `json:"description"`
	Schema      []Field    `json:"schema"`
	CacheHit    bool       `json:"cache_hit,omitempty"`
}

// SchemaSource defines the interface for table metadata backends
type SchemaSource interface {
	// TableSchema fetches metadata for a project.dataset.table identifier
	TableSchema(ctx context.Context, tableID string) (*TableSchema, error)

	// TestConnection verifies the backend is reachable
	TestConnection(ctx context.Context) error

	// GetType returns the backend type
	GetType() SourceType
}
