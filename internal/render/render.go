// Package render evaluates the small {{ ... }} expression language used by
// parameter templates for defaults, identifier formats and conversion
// factors. Expressions run in a goja JavaScript runtime with the resolved
// parameter context exposed as globals; everything outside {{ }} passes
// through verbatim.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

var exprPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

// Render substitutes every {{ expr }} segment with the result of evaluating
// expr against ctx. A nil or empty template renders to "". Evaluation
// errors carry the offending expression for diagnostics.
func (r *Renderer) Render(template string, ctx map[string]any) (string, error) {
	if template == "" {
		return "", nil
	}
	matches := exprPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	vm := goja.New()
	for k, v := range ctx {
		if err := vm.Set(k, v); err != nil {
			return "", fmt.Errorf("bind %q: %w", k, err)
		}
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(template[last:m[0]])
		expr := strings.TrimSpace(template[m[2]:m[3]])
		if expr != "" {
			val, err := vm.RunString(expr)
			if err != nil {
				return "", fmt.Errorf("evaluate {{ %s }}: %w", expr, err)
			}
			b.WriteString(stringify(val))
		}
		last = m[1]
	}
	b.WriteString(template[last:])
	return b.String(), nil
}

// stringify formats a goja value the way the template language expects:
// null/undefined become empty, numbers render without JS artifacts
// (no trailing ".0", no exponent for ordinary magnitudes).
func stringify(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return ""
	}
	switch v := val.Export().(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return val.String()
	}
}
