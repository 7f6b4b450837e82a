package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const bytesPerMB = 1024 * 1024

type Config struct {
	Port        string
	Environment string
	APIKeys     []string
	RateLimit   int
	CORSOrigins []string

	BigQuery BigQueryConfig
	Limits   QueryLimits
	Redis    RedisConfig

	AccessControlFile string
	SchemaCacheTTL    time.Duration
}

type BigQueryConfig struct {
	ProjectID   string
	Location    string
	Credentials string // Path to service account JSON
}

// QueryLimits bounds every guarded execution. MaximumBytesBilled is the
// byte ceiling below which queries run without confirmation.
type QueryLimits struct {
	MaxResults         int   `json:"max_results"`
	MaximumBytesBilled int64 `json:"maximum_bytes_billed"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		APIKeys:     splitList(getEnv("API_KEYS", "")),
		RateLimit:   getEnvAsInt("RATE_LIMIT", 100),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		BigQuery: BigQueryConfig{
			ProjectID:   getEnv("BIGQUERY_PROJECT_ID", ""),
			Location:    getEnv("BIGQUERY_LOCATION", ""),
			Credentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},

		Limits: QueryLimits{
			MaxResults:         getEnvAsInt("MAX_QUERY_RESULTS", 10000),
			MaximumBytesBilled: int64(getEnvAsInt("MAX_BYTES_BILLED_MB", 100)) * bytesPerMB,
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		AccessControlFile: getEnv("ACCESS_CONTROL_FILE", "./access-control.json"),
		SchemaCacheTTL:    getEnvAsDuration("SCHEMA_CACHE_TTL", 5*time.Minute),
	}

	if cfg.BigQuery.ProjectID == "" {
		cfg.BigQuery.ProjectID = projectFromCredentials(cfg.BigQuery.Credentials)
	}

	return cfg
}

// Validate rejects limits that would let a query run without a billing ceiling.
func (c *Config) Validate() error {
	return c.Limits.Validate()
}

func (l QueryLimits) Validate() error {
	if l.MaxResults <= 0 {
		return errors.New("max results must be positive")
	}
	if l.MaximumBytesBilled <= 0 {
		return errors.New("maximum bytes billed must be positive")
	}
	return nil
}

// MaximumBytesBilledMB returns the ceiling in megabytes.
func (l QueryLimits) MaximumBytesBilledMB() float64 {
	return float64(l.MaximumBytesBilled) / bytesPerMB
}

// projectFromCredentials reads project_id from a service account file.
func projectFromCredentials(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &sa); err != nil {
		return ""
	}
	return sa.ProjectID
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// String renders limits for log lines.
func (l QueryLimits) String() string {
	return fmt.Sprintf("max_results=%d max_bytes_billed=%d", l.MaxResults, l.MaximumBytesBilled)
}
