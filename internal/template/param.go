// Package template turns a parameter-template definition plus raw user
// input into a validated, hashable, fully typed parameter context.
package template

import (
	"fmt"
	"sort"
)

// Kind is the closed set of parameter constraint kinds. Each kind owns its
// coercion rule; adding a kind means adding one case, nothing else.
type Kind int

const (
	KindPlain Kind = iota
	KindFloat
	KindInteger
	KindFormat
	KindDoctype
)

func KindFromString(s string) Kind {
	switch s {
	case "Float":
		return KindFloat
	case "Integer":
		return KindInteger
	case "Format":
		return KindFormat
	case "Doctype":
		return KindDoctype
	default:
		return KindPlain
	}
}

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "Float"
	case KindInteger:
		return "Integer"
	case KindFormat:
		return "Format"
	case KindDoctype:
		return "Doctype"
	default:
		return "Plain"
	}
}

// Param is one row of a parameter template. Rows resolve in ascending Idx
// order; a row's default may reference any earlier-resolved parameter.
type Param struct {
	Name            string
	Kind            Kind
	Default         string
	Optional        bool
	JoinToHash      bool
	BindingField    bool
	TargetField     string
	DoctypeSelector string
	Idx             int
}

// ParamsFromDoc extracts the ordered parameter rows from a fetched template
// document's "parameters" child table.
func ParamsFromDoc(doc map[string]any) ([]Param, error) {
	rawRows, ok := doc["parameters"].([]any)
	if !ok {
		return nil, fmt.Errorf("template document has no parameters table")
	}
	params := make([]Param, 0, len(rawRows))
	for i, raw := range rawRows {
		row, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameters[%d]: not an object", i)
		}
		name := asString(row["parameter_name"])
		if name == "" {
			continue
		}
		params = append(params, Param{
			Name:            name,
			Kind:            KindFromString(asString(row["constraint_type"])),
			Default:         asString(row["parameter_default_value"]),
			Optional:        asBool(row["optional"]),
			JoinToHash:      asBool(row["join_to_hash"]),
			BindingField:    asBool(row["binding_field"]),
			TargetField:     asString(row["target_field"]),
			DoctypeSelector: asString(row["doctype_selector"]),
			Idx:             asInt(row["idx"]),
		})
	}
	return params, nil
}

// sortByIdx returns the rows stable-sorted by sequence index; ties keep
// template order.
func sortByIdx(params []Param) []Param {
	out := make([]Param, len(params))
	copy(out, params)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// asBool reads the ERP's 0/1 checkbox encoding.
func asBool(v any) bool {
	switch n := v.(type) {
	case bool:
		return n
	case int:
		return n != 0
	case int64:
		return n != 0
	case float64:
		return n != 0
	default:
		return false
	}
}
