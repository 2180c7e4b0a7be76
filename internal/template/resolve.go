package template

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Renderer evaluates a template expression against a parameter context.
// Supplied by the templating collaborator (see internal/render); the
// resolver only decides where rendering happens and in what order.
type Renderer interface {
	Render(template string, ctx map[string]any) (string, error)
}

// Lookup is the single remote capability validation needs: does a document
// with this name exist in that collection.
type Lookup interface {
	ListOne(ctx context.Context, collection string, filters map[string]any, fields []string) (map[string]any, error)
}

// Resolver applies one template's rows to per-item user input.
type Resolver struct {
	params []Param // stable-sorted by Idx
	render Renderer
}

func NewResolver(params []Param, render Renderer) *Resolver {
	return &Resolver{params: sortByIdx(params), render: render}
}

// Params returns the template rows in resolution (sequence) order.
func (r *Resolver) Params() []Param {
	return r.params
}

// Resolve seeds the context with the user-supplied values, then walks the
// rows in sequence order filling defaults and coercing by kind. Later rows
// may reference earlier resolved values in their default expressions; the
// reverse is deliberately unsupported (single left-to-right pass). Render
// failures are collected as item errors, never raised, so one bad item
// cannot take down a batch.
//
// Given identical rows and identical user input the result is
// byte-identical across runs; the hash-based dedup in the planner depends
// on this.
func (r *Resolver) Resolve(userParams map[string]any) (map[string]any, []string) {
	resolved := make(map[string]any, len(userParams)+len(r.params))
	for k, v := range userParams {
		resolved[k] = v
	}

	var errs []string
	for _, p := range r.params {
		if isEmpty(resolved[p.Name]) && p.Default != "" {
			val, err := r.render.Render(p.Default, resolved)
			if err != nil {
				errs = append(errs, fmt.Sprintf("render default for %s: %v", p.Name, err))
				continue
			}
			resolved[p.Name] = val
		}

		switch p.Kind {
		case KindFloat:
			// Canonical string form so "5.0" and "5" can never derive
			// different identifiers.
			resolved[p.Name] = CanonicalFloat(resolved[p.Name])
		case KindInteger:
			if i, ok := toInt(resolved[p.Name]); ok {
				resolved[p.Name] = i
			}
		case KindFormat:
			// Format fields are computed, not literal: always re-rendered
			// from the default expression against the current context.
			val, err := r.render.Render(p.Default, resolved)
			if err != nil {
				errs = append(errs, fmt.Sprintf("render format for %s: %v", p.Name, err))
				continue
			}
			resolved[p.Name] = val
		case KindDoctype:
			if resolved[p.Name] != nil {
				resolved[p.Name] = asString(resolved[p.Name])
			}
		}
	}
	return resolved, errs
}

// Validate runs after full resolution: every non-optional row must have a
// non-empty value, and every Doctype-typed value must name an existing
// document in its reference collection. Validation findings come back as
// strings (item-level errors); the returned error is reserved for
// transport failures, which the caller treats as fatal for the batch.
func (r *Resolver) Validate(ctx context.Context, resolved map[string]any, lookup Lookup) ([]string, error) {
	var errs []string
	for _, p := range r.params {
		if !p.Optional && isEmpty(resolved[p.Name]) {
			errs = append(errs, "missing required param: "+p.Name)
		}
		if p.Kind == KindDoctype && p.DoctypeSelector != "" && !isEmpty(resolved[p.Name]) {
			value := asString(resolved[p.Name])
			rec, err := lookup.ListOne(ctx, p.DoctypeSelector, map[string]any{"name": value}, []string{"name"})
			if err != nil {
				return nil, fmt.Errorf("doctype lookup for %s: %w", p.Name, err)
			}
			if rec == nil {
				errs = append(errs, fmt.Sprintf("invalid doctype value: %s=%s (doctype=%s)", p.Name, value, p.DoctypeSelector))
			}
		}
	}
	return errs, nil
}

func isEmpty(v any) bool {
	return v == nil || v == ""
}

// CanonicalFloat collapses any float-ish value to its canonical decimal
// string: integral values render without a trailing ".0", others with up
// to six decimal digits and trailing zeros stripped. Unparsable or empty
// input collapses to "".
func CanonicalFloat(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return ""
	}
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		t := strings.TrimSpace(n)
		if t == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toInt coerces via float parsing then truncation, mirroring how the ERP
// itself reads integer fields. Uncoercible values are left to the caller.
func toInt(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
