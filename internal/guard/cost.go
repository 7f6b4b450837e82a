package guard

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go-query-gateway/internal/security"
)

const (
	BytesPerMB = 1 << 20
	BytesPerGB = 1 << 30
	BytesPerTB = 1 << 40

	// CostPerTB is the on-demand rate in USD.
	CostPerTB = 5.00

	// CostRate is the human-readable form of CostPerTB.
	CostRate = "$5.00 per TB (US region)"
)

// CostEstimate is derived from dry-run bytes.
type CostEstimate struct {
	BytesToProcess   int64   `json:"bytes_to_process"`
	Megabytes        float64 `json:"megabytes"`
	Gigabytes        float64 `json:"gigabytes"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	LimitMB          float64 `json:"limit_mb,omitempty"`
}

// NewCostEstimate rounds megabytes to 2 places, gigabytes to 4 and the USD
// cost to 6.
func NewCostEstimate(bytes int64) CostEstimate {
	return CostEstimate{
		BytesToProcess:   bytes,
		Megabytes:        round(float64(bytes)/BytesPerMB, 2),
		Gigabytes:        round(float64(bytes)/BytesPerGB, 4),
		EstimatedCostUSD: round(calculateCost(bytes), 6),
	}
}

func calculateCost(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	return float64(bytes) / BytesPerTB * CostPerTB
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// confirmationInstructions tells the caller how to resubmit.
func confirmationInstructions(bytes int64) string {
	return fmt.Sprintf(
		"To proceed, submit the same query again with confirmed=true. This will process %.2f GB and cost approximately $%.4f.",
		float64(bytes)/BytesPerGB, calculateCost(bytes))
}

// Suggestions lists ways to reduce the bytes a query scans. Comments and
// literals are ignored.
func Suggestions(query string) []string {
	suggestions := []string{}
	upper := strings.ToUpper(security.Normalize(query))

	if strings.Contains(upper, "SELECT *") {
		suggestions = append(suggestions,
			"Avoid SELECT * - specify only required columns to reduce data scanned")
	}

	hasLimit := strings.Contains(upper, "LIMIT")
	if !hasLimit && strings.Contains(upper, "ORDER BY") {
		suggestions = append(suggestions,
			"Add LIMIT clause when using ORDER BY to reduce processing")
	}

	if (strings.Contains(upper, "_PARTITIONTIME") || strings.Contains(upper, "_PARTITIONDATE")) &&
		!strings.Contains(upper, "WHERE") {
		suggestions = append(suggestions,
			"Add partition filter in WHERE clause to reduce data scanned")
	}

	if !hasLimit {
		suggestions = append(suggestions,
			"Use table preview or add LIMIT for data exploration")
	}

	if joins := strings.Count(upper, "JOIN"); joins > 2 {
		suggestions = append(suggestions,
			fmt.Sprintf("Query has %d JOINs - consider materializing intermediate results", joins))
	}

	return suggestions
}

// truncateQuery shortens queries for log fields to at most 100 bytes,
// cutting on a character boundary.
func truncateQuery(query string) string {
	query = strings.TrimSpace(query)
	if len(query) <= 100 {
		return query
	}
	cut := 97
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	return query[:cut] + "..."
}
