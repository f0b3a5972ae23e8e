// Package catalog loads the declarative regime catalog. Regimes are data
// (id, domain, framework, articles), not code; evaluator wiring happens at
// composition time using the catalog as the source of truth.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Regime describes one regulatory regime.
type Regime struct {
	ID        string   `yaml:"id" json:"id"`
	Domain    string   `yaml:"domain" json:"domain"`
	Framework string   `yaml:"framework" json:"framework"`
	Articles  []string `yaml:"articles,omitempty" json:"articles,omitempty"`
}

// Catalog is the full set of configured regimes.
type Catalog struct {
	Regimes []Regime `yaml:"regimes" json:"regimes"`
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["regimes"],
  "properties": {
    "regimes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "domain", "framework"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
          "domain": {"type": "string", "minLength": 1},
          "framework": {"type": "string", "minLength": 1},
          "articles": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("catalog.schema.json", schemaJSON)

// Load reads and validates a YAML catalog file. Duplicate regime ids are
// rejected; evaluator lookup assumes ids are unique.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse validates and decodes raw YAML catalog content.
func Parse(raw []byte) (*Catalog, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	// Schema validation wants json-shaped values, so round-trip.
	jsonRaw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize catalog: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonRaw, &jsonDoc); err != nil {
		return nil, fmt.Errorf("normalize catalog: %w", err)
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := map[string]bool{}
	for _, r := range cat.Regimes {
		id := strings.ToUpper(r.ID)
		if seen[id] {
			return nil, fmt.Errorf("invalid catalog: duplicate regime id %q", r.ID)
		}
		seen[id] = true
	}
	return &cat, nil
}

// Get returns the regime with the given id, case-insensitive.
func (c *Catalog) Get(id string) (Regime, bool) {
	for _, r := range c.Regimes {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return Regime{}, false
}

// IDs lists regime ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Regimes))
	for _, r := range c.Regimes {
		ids = append(ids, r.ID)
	}
	return ids
}
