// Package profile loads the item-profile catalog: named presets that bind
// a parameter template to a target collection, identifier/hash fields and
// unit-of-measure rules.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// UomRule declares one unit-of-measure row for produced items. The factor
// is either a literal or an expression evaluated against the resolved
// parameter context.
type UomRule struct {
	Uom                  string  `json:"uom"`
	ConversionFactor     float64 `json:"conversion_factor,omitempty"`
	ConversionFactorExpr string  `json:"conversion_factor_expr,omitempty"`
}

// Profile configures one batch-creation preset.
type Profile struct {
	TemplateDoctype string    `json:"template_doctype"`
	TemplateName    string    `json:"template_name"`
	TargetDoctype   string    `json:"target_doctype"`
	IDField         string    `json:"id_field"`
	HashField       string    `json:"hash_field,omitempty"`
	IDFormat        string    `json:"id_format,omitempty"`
	ModeDefault     string    `json:"mode_default,omitempty"`
	UomRules        []UomRule `json:"uom_rules,omitempty"`
}

type Store struct {
	Profiles map[string]Profile `json:"profiles"`
}

const schemaJSON = `{
  "type": "object",
  "required": ["profiles"],
  "properties": {
    "profiles": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["template_name"],
        "properties": {
          "template_doctype": {"type": "string"},
          "template_name": {"type": "string", "minLength": 1},
          "target_doctype": {"type": "string"},
          "id_field": {"type": "string"},
          "hash_field": {"type": "string"},
          "id_format": {"type": "string"},
          "mode_default": {"enum": ["create_only", "skip_existing", "upsert"]},
          "uom_rules": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["uom"],
              "properties": {
                "uom": {"type": "string", "minLength": 1},
                "conversion_factor": {"type": "number"},
                "conversion_factor_expr": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("item_profiles.schema.json", schemaJSON)

// Load reads and validates the profile catalog. Validation happens against
// the schema before decoding so malformed files fail with a field-level
// message instead of a zero-valued profile.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%s: not valid JSON: %w", path, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for name, p := range store.Profiles {
		store.Profiles[name] = p.withDefaults()
	}
	return &store, nil
}

func (p Profile) withDefaults() Profile {
	if p.TemplateDoctype == "" {
		p.TemplateDoctype = "Item Parameter Template"
	}
	if p.TargetDoctype == "" {
		p.TargetDoctype = "Item"
	}
	if p.IDField == "" {
		p.IDField = "custom_unique_item_name"
	}
	if p.ModeDefault == "" {
		p.ModeDefault = "upsert"
	}
	return p
}

// Get returns a named profile; the error for an unknown name lists what is
// available so operators can fix a typo without opening the file.
func (s *Store) Get(name string) (Profile, error) {
	if p, ok := s.Profiles[name]; ok {
		return p, nil
	}
	avail := make([]string, 0, len(s.Profiles))
	for k := range s.Profiles {
		avail = append(avail, k)
	}
	sort.Strings(avail)
	return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(avail, ", "))
}
