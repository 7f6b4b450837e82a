package guard

import "go-query-gateway/internal/config"

const costNote = "Queries are automatically checked against billing limits before execution"

// LimitsReport describes the configured ceilings.
type LimitsReport struct {
	Limits struct {
		MaxResults           int     `json:"max_results"`
		MaximumBytesBilled   int64   `json:"maximum_bytes_billed"`
		MaximumBytesBilledMB float64 `json:"maximum_bytes_billed_mb"`
		MaximumBytesBilledGB float64 `json:"maximum_bytes_billed_gb"`
	} `json:"limits"`
	CostInfo struct {
		Rate string `json:"rate"`
		Note string `json:"note"`
	} `json:"cost_info"`
}

// TablesReport lists what the policy allows.
type TablesReport struct {
	TotalTables int      `json:"total_tables"`
	Tables      []string `json:"tables"`
	Note        string   `json:"note"`
}

// DatasetEntry is one dataset of the policy, in file order.
type DatasetEntry struct {
	ID                string   `json:"id"`
	Description       string   `json:"description,omitempty"`
	AllowAllTables    bool     `json:"allow_all_tables"`
	BlacklistedTables []string `json:"blacklisted_tables"`
}

// DatasetsReport groups the policy by mechanism.
type DatasetsReport struct {
	Datasets []DatasetEntry `json:"datasets"`
	Tables   []string       `json:"tables"`
	Patterns []string       `json:"patterns"`
}

// LimitsReport renders the configured limits with sizes rounded to 2 places.
func (g *Guard) LimitsReport() LimitsReport {
	var r LimitsReport
	r.Limits.MaxResults = g.limits.MaxResults
	r.Limits.MaximumBytesBilled = g.limits.MaximumBytesBilled
	r.Limits.MaximumBytesBilledMB = round(float64(g.limits.MaximumBytesBilled)/BytesPerMB, 2)
	r.Limits.MaximumBytesBilledGB = round(float64(g.limits.MaximumBytesBilled)/BytesPerGB, 2)
	r.CostInfo.Rate = CostRate
	r.CostInfo.Note = costNote
	return r
}

// TablesReport wraps ListAllowedTables for transports.
func (g *Guard) TablesReport() TablesReport {
	tables := g.ListAllowedTables()
	return TablesReport{
		TotalTables: len(tables),
		Tables:      tables,
		Note:        "Use get_table_schema(table_id) to see detailed schema and description for any table",
	}
}

// DatasetsReport describes the policy without expanding datasets into tables.
func (g *Guard) DatasetsReport() DatasetsReport {
	return datasetsReport(g.Policy())
}

func datasetsReport(cfg *config.AccessConfig) DatasetsReport {
	r := DatasetsReport{
		Datasets: []DatasetEntry{},
		Tables:   append([]string{}, cfg.AllowedTables...),
		Patterns: append([]string{}, cfg.AllowedPatterns...),
	}
	for _, id := range cfg.DatasetIDs() {
		rule := cfg.AllowedDatasets[id]
		r.Datasets = append(r.Datasets, DatasetEntry{
			ID:                id,
			Description:       rule.Description,
			AllowAllTables:    rule.AllowAllTables,
			BlacklistedTables: append([]string{}, rule.BlacklistedTables...),
		})
	}
	return r
}
