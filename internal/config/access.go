package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// AccessConfig is the table authorization policy. A table is allowed if any
// of the three mechanisms allows it.
type AccessConfig struct {
	AllowedTables   []string               `yaml:"allowed_tables" json:"allowed_tables"`
	AllowedDatasets map[string]DatasetRule `yaml:"allowed_datasets" json:"allowed_datasets"`
	AllowedPatterns []string               `yaml:"allowed_patterns" json:"allowed_patterns"`

	// datasetOrder remembers the order datasets appeared in the source file.
	datasetOrder []string
}

// DatasetRule grants access to a dataset minus its blacklisted tables.
type DatasetRule struct {
	AllowAllTables    bool     `yaml:"allow_all_tables" json:"allow_all_tables"`
	BlacklistedTables []string `yaml:"blacklisted_tables" json:"blacklisted_tables"`
	Description       string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// DefaultAccessConfig is used when no access-control file exists.
func DefaultAccessConfig() *AccessConfig {
	return &AccessConfig{
		AllowedTables: []string{
			"bigquery-public-data.iowa_liquor_sales.sales",
		},
		AllowedDatasets: map[string]DatasetRule{
			"bigquery-public-data.austin_bikeshare": {
				AllowAllTables:    true,
				BlacklistedTables: []string{},
			},
		},
		AllowedPatterns: []string{},
	}
}

// ParseAccessConfig decodes an access-control document, either JSON or YAML.
func ParseAccessConfig(data []byte) (*AccessConfig, error) {
	cfg := &AccessConfig{}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := decodeJSON(trimmed, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse access config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse access config: %w", err)
	}

	if cfg.AllowedDatasets == nil {
		cfg.AllowedDatasets = map[string]DatasetRule{}
	}
	return cfg, nil
}

func decodeJSON(data []byte, cfg *AccessConfig) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	if raw, ok := top["allowed_datasets"]; ok {
		cfg.datasetOrder = objectKeys(raw)
	}
	return nil
}

// objectKeys lists the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
		keys = append(keys, key)
	}
	return keys
}

// LoadAccessConfig reads the access-control file at path. A missing file
// yields the default policy with a nil error; a file that exists but cannot
// be read or parsed yields the default policy together with the error so the
// caller can log it.
func LoadAccessConfig(path string) (*AccessConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultAccessConfig(), nil
	}
	if err != nil {
		return DefaultAccessConfig(), fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := ParseAccessConfig(data)
	if err != nil {
		return DefaultAccessConfig(), fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cfg, nil
}

// UnmarshalYAML decodes the document and records dataset key order.
func (c *AccessConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain AccessConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = AccessConfig(p)
	c.datasetOrder = nil

	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value != "allowed_datasets" || value.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(value.Content); j += 2 {
			c.datasetOrder = append(c.datasetOrder, value.Content[j].Value)
		}
	}
	return nil
}

// DatasetIDs returns the configured dataset ids: file order first, then any
// ids added programmatically in sorted order.
func (c *AccessConfig) DatasetIDs() []string {
	ids := make([]string, 0, len(c.AllowedDatasets))
	seen := make(map[string]bool, len(c.AllowedDatasets))
	for _, id := range c.datasetOrder {
		if _, ok := c.AllowedDatasets[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	var rest []string
	for id := range c.AllowedDatasets {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}
