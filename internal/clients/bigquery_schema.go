package clients

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/datasource"
)

// TableSchema implements datasource.SchemaSource
func (c *BigQueryClient) TableSchema(ctx context.Context, tableID string) (*datasource.TableSchema, error) {
	ref := access.ParseTableReference(tableID)
	if ref.Dataset == "" || ref.Table == "" {
		return nil, fmt.Errorf("table id must be dataset.table or project.dataset.table, got %q", tableID)
	}

	md, err := c.TableMetadata(ctx, ref.Project, ref.Dataset, ref.Table)
	if err != nil {
		return nil, err
	}

	return schemaFromMetadata(tableID, md), nil
}

// GetType returns the data source type
func (c *BigQueryClient) GetType() datasource.SourceType {
	return datasource.SourceBigQuery
}

func schemaFromMetadata(tableID string, md *bigquery.TableMetadata) *datasource.TableSchema {
	s := &datasource.TableSchema{
		TableID:     tableID,
		NumRows:     md.NumRows,
		NumBytes:    md.NumBytes,
		Description: md.Description,
		Schema:      flattenSchema("", md.Schema, nil),
	}
	if !md.CreationTime.IsZero() {
		created := md.CreationTime
		s.Created = &created
	}
	if !md.LastModifiedTime.IsZero() {
		modified := md.LastModifiedTime
		s.Modified = &modified
	}
	return s
}

// flattenSchema walks RECORD fields depth first, naming children parent.child.
func flattenSchema(prefix string, schema bigquery.Schema, out []datasource.Field) []datasource.Field {
	if out == nil {
		out = make([]datasource.Field, 0, len(schema))
	}
	for _, f := range schema {
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}
		out = append(out, datasource.Field{
			Name:        name,
			Type:        string(f.Type),
			Mode:        fieldMode(f),
			Description: f.Description,
		})
		if len(f.Schema) > 0 {
			out = flattenSchema(name, f.Schema, out)
		}
	}
	return out
}

func fieldMode(f *bigquery.FieldSchema) string {
	switch {
	case f.Repeated:
		return "REPEATED"
	case f.Required:
		return "REQUIRED"
	default:
		return "NULLABLE"
	}
}
