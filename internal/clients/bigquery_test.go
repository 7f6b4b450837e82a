package clients

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-query-gateway/internal/datasource"
)

func TestConvertBigQueryValue(t *testing.T) {
	tests := []struct {
		name string
		in   bigquery.Value
		want interface{}
	}{
		{"primitive", int64(42), int64(42)},
		{"nil", nil, nil},
		{"numeric", big.NewRat(3, 2), "1.500000000"},
		{
			name: "array of structs",
			in: []bigquery.Value{
				map[string]bigquery.Value{"a": "x"},
			},
			want: []interface{}{
				map[string]interface{}{"a": "x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertBigQueryValue(tt.in))
		})
	}
}

func TestSchemaFromMetadata(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	md := &bigquery.TableMetadata{
		Description:  "Trips",
		NumRows:      10,
		NumBytes:     2048,
		CreationTime: created,
		Schema: bigquery.Schema{
			{Name: "id", Type: bigquery.IntegerFieldType, Required: true},
			{
				Name:     "stops",
				Type:     bigquery.RecordFieldType,
				Repeated: true,
				Schema: bigquery.Schema{
					{Name: "name", Type: bigquery.StringFieldType, Description: "Stop name"},
					{
						Name: "geo",
						Type: bigquery.RecordFieldType,
						Schema: bigquery.Schema{
							{Name: "lat", Type: bigquery.FloatFieldType},
						},
					},
				},
			},
		},
	}

	s := schemaFromMetadata("p.d.trips", md)
	require.NotNil(t, s)
	assert.Equal(t, "p.d.trips", s.TableID)
	assert.Equal(t, uint64(10), s.NumRows)
	assert.Equal(t, int64(2048), s.NumBytes)
	assert.Equal(t, "Trips", s.Description)
	require.NotNil(t, s.Created)
	assert.Equal(t, created, *s.Created)
	assert.Nil(t, s.Modified)

	assert.Equal(t, []datasource.Field{
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
		{Name: "stops", Type: "RECORD", Mode: "REPEATED"},
		{Name: "stops.name", Type: "STRING", Mode: "NULLABLE", Description: "Stop name"},
		{Name: "stops.geo", Type: "RECORD", Mode: "NULLABLE"},
		{Name: "stops.geo.lat", Type: "FLOAT", Mode: "NULLABLE"},
	}, s.Schema)
}

func TestSchemaFromMetadata_EmptySchema(t *testing.T) {
	s := schemaFromMetadata("d.t", &bigquery.TableMetadata{})
	assert.NotNil(t, s.Schema)
	assert.Empty(t, s.Schema)
}
