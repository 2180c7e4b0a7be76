// Package planner decides the fate of each item in a batch (create,
// update, skip, error) and assembles the exact field payload sent to the
// remote store, including unit-of-measure rows.
package planner

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"facops/internal/profile"
	"facops/internal/template"
)

// Mode controls what happens when a matching item already exists.
type Mode string

const (
	// ModeCreateOnly and ModeSkipExisting behave identically here: an
	// existing match is reported, never touched. skip_existing is meant to
	// be paired with discovery tooling that pre-filters; create_only is
	// the stricter default.
	ModeCreateOnly   Mode = "create_only"
	ModeSkipExisting Mode = "skip_existing"
	ModeUpsert       Mode = "upsert"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCreateOnly, ModeSkipExisting, ModeUpsert:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q (want create_only, skip_existing or upsert)", s)
}

// Uom is one computed unit-of-measure row of the output payload.
type Uom struct {
	Uom              string  `json:"uom"`
	ConversionFactor float64 `json:"conversion_factor"`
}

// Planner plans and executes one batch against one profile. Fields are
// read-only once the run starts.
type Planner struct {
	Profile   profile.Profile
	Resolver  *template.Resolver
	Render    template.Renderer
	Store     Store
	ItemGroup string // carried from the template document onto every item
	Mode      Mode
	DryRun    bool
	Logger    *slog.Logger
}

// hashJoin joins hash-contributing parameters as name=value pairs in
// template sequence order. Both the fallback identifier and the content
// hash digest this exact string, so it must be a pure function of the
// resolved context.
func (p *Planner) hashJoin(resolved map[string]any) string {
	var parts []string
	for _, row := range p.Resolver.Params() {
		if row.JoinToHash {
			parts = append(parts, row.Name+"="+valueString(resolved[row.Name]))
		}
	}
	return strings.Join(parts, "|")
}

// ComputeID derives the stable identifier: an explicit id_format when
// configured, else a digest of the hash-contributing parameters. With
// neither configured the identifier is random and idempotence is lost;
// that configuration is reported via the second return so callers can
// flag the data-modeling gap instead of silently accepting it.
func (p *Planner) ComputeID(resolved map[string]any) (id string, random bool, err error) {
	if p.Profile.IDFormat != "" {
		rendered, err := p.Render.Render(p.Profile.IDFormat, resolved)
		if err != nil {
			return "", false, fmt.Errorf("render id_format: %w", err)
		}
		return rendered, false, nil
	}
	if join := p.hashJoin(resolved); join != "" {
		return "ITEM-" + md5hex(join), false, nil
	}
	return "ITEM-" + opaqueID(12), true, nil
}

// ComputeHash derives the content hash from hash-contributing parameters,
// independent of whether an id_format is also configured. Empty when no
// parameter contributes.
func (p *Planner) ComputeHash(resolved map[string]any) string {
	join := p.hashJoin(resolved)
	if join == "" {
		return ""
	}
	return md5hex(join)
}

// BuildFields assembles the write payload: the template's item group, each
// binding-flagged parameter under its declared target field, the derived
// identifier and, when configured, the content hash. Parameters without a
// binding flag stay context-only.
func (p *Planner) BuildFields(resolved map[string]any, id string) map[string]any {
	fields := map[string]any{}
	if p.ItemGroup != "" {
		fields["item_group"] = p.ItemGroup
	}
	for _, row := range p.Resolver.Params() {
		if row.BindingField && row.TargetField != "" {
			fields[row.TargetField] = resolved[row.Name]
		}
	}
	fields[p.Profile.IDField] = id
	if p.Profile.HashField != "" {
		fields[p.Profile.HashField] = p.ComputeHash(resolved)
	}
	return fields
}

// BuildUoms evaluates the profile's unit rules against the resolved
// context. An invalid or empty factor expression coerces to zero rather
// than failing the item; a zero factor is visible in review, a dropped
// unit row is not.
func (p *Planner) BuildUoms(resolved map[string]any) []Uom {
	var out []Uom
	for _, rule := range p.Profile.UomRules {
		if rule.Uom == "" {
			continue
		}
		factor := rule.ConversionFactor
		if rule.ConversionFactorExpr != "" {
			factor = 0
			if rendered, err := p.Render.Render(rule.ConversionFactorExpr, resolved); err == nil {
				if f, err := strconv.ParseFloat(strings.TrimSpace(rendered), 64); err == nil {
					factor = f
				}
			}
		}
		out = append(out, Uom{Uom: rule.Uom, ConversionFactor: factor})
	}
	return out
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func opaqueID(length int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(s) > length {
		s = s[:length]
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
