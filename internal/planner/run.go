package planner

import (
	"context"
	"fmt"
)

// Store is the slice of the remote client the planner needs: existence
// lookups and document writes. The wire encoding is the client's concern.
type Store interface {
	ListOne(ctx context.Context, collection string, filters map[string]any, fields []string) (map[string]any, error)
	GetDocument(ctx context.Context, collection, name string) (map[string]any, error)
	CreateDocument(ctx context.Context, collection string, fields map[string]any) (map[string]any, error)
	UpdateDocument(ctx context.Context, collection, name string, fields map[string]any) (map[string]any, error)
}

// Item is one entry of a batch request.
type Item struct {
	Params map[string]any `json:"params"`
}

type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusExists  Status = "exists"
	StatusDryRun  Status = "dry_run"
	StatusError   Status = "error"
)

// Outcome records what happened to one item. Idx is 1-based input order.
type Outcome struct {
	Idx      int      `json:"idx"`
	Status   Status   `json:"status"`
	ID       string   `json:"id"`
	Hash     string   `json:"hash,omitempty"`
	Name     string   `json:"name,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	DataKeys []string `json:"data_keys,omitempty"`
}

// Summary aggregates a batch run. A batch is fully successful only when
// Errors is zero.
type Summary struct {
	Profile  string    `json:"profile"`
	Mode     Mode      `json:"mode"`
	DryRun   bool      `json:"dry_run"`
	Count    int       `json:"count"`
	OK       int       `json:"ok"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Exists   int       `json:"exists"`
	DryRuns  int       `json:"dry_runs"`
	Errors   int       `json:"errors"`
	Outcomes []Outcome `json:"results"`
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	s.Count++
	switch o.Status {
	case StatusCreated:
		s.Created++
		s.OK++
	case StatusUpdated:
		s.Updated++
		s.OK++
	case StatusExists:
		s.Exists++
		s.OK++
	case StatusDryRun:
		s.DryRuns++
		s.OK++
	case StatusError:
		s.Errors++
	}
}

// Run processes the batch strictly in input order, one item at a time.
// Per-item validation failures become error outcomes and the batch
// continues; a transport failure aborts the remainder because the remote
// state is unknown at that point. The partial summary is returned either
// way, so a rerun can be scoped to the unprocessed tail.
func (p *Planner) Run(ctx context.Context, profileName string, items []Item) (*Summary, error) {
	summary := &Summary{Profile: profileName, Mode: p.Mode, DryRun: p.DryRun}
	for i, item := range items {
		idx := i + 1
		outcome, err := p.processItem(ctx, idx, item)
		if err != nil {
			return summary, fmt.Errorf("item %d: %w", idx, err)
		}
		summary.add(outcome)
		p.Logger.Info("item processed",
			"idx", idx, "status", string(outcome.Status), "id", outcome.ID, "name", outcome.Name)
	}
	return summary, nil
}

// processItem resolves, validates, derives identity and executes one item.
// The returned error is always transport-level; everything else is encoded
// in the Outcome.
func (p *Planner) processItem(ctx context.Context, idx int, item Item) (Outcome, error) {
	resolved, errs := p.Resolver.Resolve(item.Params)

	validationErrs, err := p.Resolver.Validate(ctx, resolved, p.Store)
	if err != nil {
		return Outcome{}, err
	}
	errs = append(errs, validationErrs...)

	id, random, idErr := p.ComputeID(resolved)
	if idErr != nil {
		errs = append(errs, idErr.Error())
	}
	if random {
		p.Logger.Warn("no id_format and no hash-contributing parameters; generated identifier is not reproducible",
			"idx", idx, "id", id)
	}
	var hash string
	if p.Profile.HashField != "" {
		hash = p.ComputeHash(resolved)
	}

	if len(errs) > 0 {
		return Outcome{Idx: idx, Status: StatusError, ID: id, Hash: hash, Errors: errs}, nil
	}

	existing, err := p.findExisting(ctx, id, hash)
	if err != nil {
		return Outcome{}, err
	}
	if existing != "" && (p.Mode == ModeCreateOnly || p.Mode == ModeSkipExisting) {
		return Outcome{Idx: idx, Status: StatusExists, ID: id, Hash: hash, Name: existing}, nil
	}

	fields := p.BuildFields(resolved, id)
	uoms := p.BuildUoms(resolved)

	if p.DryRun {
		preview := fields
		if len(uoms) > 0 {
			preview = copyFields(fields)
			preview["uoms"] = uoms
		}
		return Outcome{Idx: idx, Status: StatusDryRun, ID: id, Hash: hash, DataKeys: sortedKeys(preview)}, nil
	}

	if existing != "" && p.Mode == ModeUpsert {
		if err := p.updateExisting(ctx, existing, fields, uoms); err != nil {
			return Outcome{}, err
		}
		return Outcome{Idx: idx, Status: StatusUpdated, ID: id, Hash: hash, Name: existing}, nil
	}

	payload := fields
	if len(uoms) > 0 {
		payload = copyFields(fields)
		payload["uoms"] = uoms
	}
	created, err := p.Store.CreateDocument(ctx, p.Profile.TargetDoctype, payload)
	if err != nil {
		return Outcome{}, err
	}
	name := ""
	if created != nil {
		name, _ = created["name"].(string)
	}
	return Outcome{Idx: idx, Status: StatusCreated, ID: id, Hash: hash, Name: name}, nil
}

// findExisting resolves existence by content hash first, then by derived
// identifier. The hash wins because it is always derived from the
// canonicalized parameter set, while two id_format renderings could in
// principle collide for distinct parameter sets.
func (p *Planner) findExisting(ctx context.Context, id, hash string) (string, error) {
	if p.Profile.HashField != "" && hash != "" {
		rec, err := p.Store.ListOne(ctx, p.Profile.TargetDoctype,
			map[string]any{p.Profile.HashField: hash}, []string{"name"})
		if err != nil {
			return "", err
		}
		if name, ok := recordName(rec); ok {
			return name, nil
		}
	}
	if id != "" {
		rec, err := p.Store.ListOne(ctx, p.Profile.TargetDoctype,
			map[string]any{p.Profile.IDField: id}, []string{"name"})
		if err != nil {
			return "", err
		}
		if name, ok := recordName(rec); ok {
			return name, nil
		}
	}
	return "", nil
}

// updateExisting merges the bound fields, then reconciles unit rows by
// unit name: matching rows get the new factor, missing rows are appended,
// unrelated existing rows are left untouched. The second write is issued
// only when the reconciliation changed something.
func (p *Planner) updateExisting(ctx context.Context, name string, fields map[string]any, uoms []Uom) error {
	if _, err := p.Store.UpdateDocument(ctx, p.Profile.TargetDoctype, name, fields); err != nil {
		return err
	}
	if len(uoms) == 0 {
		return nil
	}

	doc, err := p.Store.GetDocument(ctx, p.Profile.TargetDoctype, name)
	if err != nil {
		return err
	}
	merged, changed := mergeUoms(doc["uoms"], uoms)
	if !changed {
		return nil
	}
	_, err = p.Store.UpdateDocument(ctx, p.Profile.TargetDoctype, name, map[string]any{"uoms": merged})
	return err
}

// mergeUoms reconciles computed unit rows into the document's existing
// child rows, keyed by unit name.
func mergeUoms(existing any, computed []Uom) (rows []map[string]any, changed bool) {
	byUom := map[string]int{}
	if list, ok := existing.([]any); ok {
		for _, raw := range list {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			kept := map[string]any{}
			for k, v := range row {
				kept[k] = v
			}
			name, _ := kept["uom"].(string)
			byUom[name] = len(rows)
			rows = append(rows, kept)
		}
	}
	for _, u := range computed {
		if i, ok := byUom[u.Uom]; ok {
			current, _ := toFloatAny(rows[i]["conversion_factor"])
			if current != u.ConversionFactor {
				rows[i]["conversion_factor"] = u.ConversionFactor
				changed = true
			}
			continue
		}
		rows = append(rows, map[string]any{"uom": u.Uom, "conversion_factor": u.ConversionFactor})
		changed = true
	}
	return rows, changed
}

func recordName(rec map[string]any) (string, bool) {
	if rec == nil {
		return "", false
	}
	name, ok := rec["name"].(string)
	return name, ok && name != ""
}

func copyFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toFloatAny(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
