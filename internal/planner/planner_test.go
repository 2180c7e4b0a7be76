package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"facops/internal/logging"
	"facops/internal/profile"
	"facops/internal/render"
	"facops/internal/template"
)

// fakeStore is an in-memory Store keeping full call history so tests can
// assert exactly which writes were issued.
type fakeStore struct {
	docs    map[string][]map[string]any // collection -> documents
	calls   []string
	nextSeq int
	failOn  string // call name that returns a transport-style error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]map[string]any{}}
}

func (f *fakeStore) seed(collection string, doc map[string]any) {
	f.docs[collection] = append(f.docs[collection], doc)
}

func (f *fakeStore) fail(call string) error {
	return fmt.Errorf("%s: injected transport failure", call)
}

func (f *fakeStore) find(collection string, filters map[string]any) map[string]any {
	for _, doc := range f.docs[collection] {
		match := true
		for field, want := range filters {
			if doc[field] != want {
				match = false
				break
			}
		}
		if match {
			return doc
		}
	}
	return nil
}

func (f *fakeStore) ListOne(ctx context.Context, collection string, filters map[string]any, fields []string) (map[string]any, error) {
	f.calls = append(f.calls, "list")
	if f.failOn == "list" {
		return nil, f.fail("list")
	}
	return f.find(collection, filters), nil
}

func (f *fakeStore) GetDocument(ctx context.Context, collection, name string) (map[string]any, error) {
	f.calls = append(f.calls, "get")
	if f.failOn == "get" {
		return nil, f.fail("get")
	}
	doc := f.find(collection, map[string]any{"name": name})
	if doc == nil {
		return nil, fmt.Errorf("%s/%s not found", collection, name)
	}
	return doc, nil
}

func (f *fakeStore) CreateDocument(ctx context.Context, collection string, fields map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, "create")
	if f.failOn == "create" {
		return nil, f.fail("create")
	}
	f.nextSeq++
	doc := map[string]any{"name": fmt.Sprintf("GEN-%04d", f.nextSeq)}
	for k, v := range fields {
		doc[k] = v
	}
	f.seed(collection, doc)
	return doc, nil
}

func (f *fakeStore) UpdateDocument(ctx context.Context, collection, name string, fields map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, "update")
	if f.failOn == "update" {
		return nil, f.fail("update")
	}
	doc := f.find(collection, map[string]any{"name": name})
	if doc == nil {
		return nil, fmt.Errorf("%s/%s not found", collection, name)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return doc, nil
}

func (f *fakeStore) writes() int {
	n := 0
	for _, c := range f.calls {
		if c == "create" || c == "update" {
			n++
		}
	}
	return n
}

func plateParams() []template.Param {
	return []template.Param{
		{Name: "grade", Kind: template.KindDoctype, DoctypeSelector: "Steel Grade", JoinToHash: true, BindingField: true, TargetField: "custom_grade", Idx: 1},
		{Name: "thickness", Kind: template.KindFloat, JoinToHash: true, BindingField: true, TargetField: "custom_thickness", Idx: 2},
		{Name: "width", Kind: template.KindInteger, Default: "1500", JoinToHash: true, Idx: 3},
		{Name: "item_name", Kind: template.KindFormat, Default: "PLT {{ grade }} {{ thickness }}x{{ width }}", BindingField: true, TargetField: "item_name", Idx: 4},
	}
}

func plateProfile() profile.Profile {
	return profile.Profile{
		TemplateDoctype: "Item Parameter Template",
		TemplateName:    "Steel Plate",
		TargetDoctype:   "Item",
		IDField:         "custom_unique_item_name",
		HashField:       "custom_param_hash",
		UomRules: []profile.UomRule{
			{Uom: "Kg", ConversionFactorExpr: "{{ thickness * 2 }}"},
		},
	}
}

func newPlanner(store Store, prof profile.Profile, mode Mode, dryRun bool) *Planner {
	return &Planner{
		Profile:   prof,
		Resolver:  template.NewResolver(plateParams(), render.New()),
		Render:    render.New(),
		Store:     store,
		ItemGroup: "Steel Plates",
		Mode:      mode,
		DryRun:    dryRun,
		Logger:    logging.Discard(),
	}
}

func seedGrades(store *fakeStore, grades ...string) {
	for _, g := range grades {
		store.seed("Steel Grade", map[string]any{"name": g})
	}
}

func resolve(t *testing.T, p *Planner, user map[string]any) map[string]any {
	t.Helper()
	resolved, errs := p.Resolver.Resolve(user)
	if len(errs) != 0 {
		t.Fatalf("resolve errors: %v", errs)
	}
	return resolved
}

func TestHashStableUnderInputReordering(t *testing.T) {
	p := newPlanner(newFakeStore(), plateProfile(), ModeUpsert, false)

	a := resolve(t, p, map[string]any{"grade": "Q235B", "thickness": "5", "width": 1500})
	b := resolve(t, p, map[string]any{"width": 1500, "thickness": "5", "grade": "Q235B"})

	if p.ComputeHash(a) != p.ComputeHash(b) {
		t.Fatal("hash depends on user input order")
	}
	idA, _, _ := p.ComputeID(a)
	idB, _, _ := p.ComputeID(b)
	if idA != idB {
		t.Fatal("identifier depends on user input order")
	}
}

func TestHashStableAcrossNumericForms(t *testing.T) {
	p := newPlanner(newFakeStore(), plateProfile(), ModeUpsert, false)

	a := resolve(t, p, map[string]any{"grade": "Q235B", "thickness": 5.0})
	b := resolve(t, p, map[string]any{"grade": "Q235B", "thickness": "5.0"})
	c := resolve(t, p, map[string]any{"grade": "Q235B", "thickness": "5"})

	ha, hb, hc := p.ComputeHash(a), p.ComputeHash(b), p.ComputeHash(c)
	if ha != hb || hb != hc {
		t.Fatalf("numerically equal thickness values hash differently: %s %s %s", ha, hb, hc)
	}
}

func TestComputeIDFromHashParams(t *testing.T) {
	p := newPlanner(newFakeStore(), plateProfile(), ModeUpsert, false)
	resolved := resolve(t, p, map[string]any{"grade": "Q235B", "thickness": "5"})

	id, random, err := p.ComputeID(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if random {
		t.Fatal("hash-derived id reported as random")
	}
	want := "ITEM-" + md5hex("grade=Q235B|thickness=5|width=1500")
	if id != want {
		t.Fatalf("id = %q, want %q", id, want)
	}
}

func TestComputeIDFromFormat(t *testing.T) {
	prof := plateProfile()
	prof.IDFormat = "PLT-{{ grade }}-{{ thickness }}"
	p := newPlanner(newFakeStore(), prof, ModeUpsert, false)

	resolved := resolve(t, p, map[string]any{"grade": "Q235B", "thickness": "5"})
	id, _, err := p.ComputeID(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if id != "PLT-Q235B-5" {
		t.Fatalf("id = %q", id)
	}
	// Hash is an independent derived value, still computed from hash params.
	if p.ComputeHash(resolved) != md5hex("grade=Q235B|thickness=5|width=1500") {
		t.Fatal("id_format must not change the content hash")
	}
}

func TestComputeIDRandomFallback(t *testing.T) {
	prof := plateProfile()
	p := newPlanner(newFakeStore(), prof, ModeUpsert, false)
	p.Resolver = template.NewResolver([]template.Param{
		{Name: "remark", Kind: template.KindPlain, Optional: true, Idx: 1},
	}, render.New())

	a, randomA, _ := p.ComputeID(map[string]any{})
	b, randomB, _ := p.ComputeID(map[string]any{})
	if !randomA || !randomB {
		t.Fatal("fallback id must be flagged random")
	}
	if a == b {
		t.Fatal("fallback ids should differ per call")
	}
	if !strings.HasPrefix(a, "ITEM-") || len(a) != len("ITEM-")+12 {
		t.Fatalf("unexpected fallback id %q", a)
	}
}

func TestModeMatrixExisting(t *testing.T) {
	for _, mode := range []Mode{ModeCreateOnly, ModeSkipExisting} {
		t.Run(string(mode), func(t *testing.T) {
			store := newFakeStore()
			seedGrades(store, "Q235B")
			p := newPlanner(store, plateProfile(), mode, false)

			hash := md5hex("grade=Q235B|thickness=5|width=1500")
			store.seed("Item", map[string]any{"name": "ITEM-OLD", "custom_param_hash": hash})

			summary, err := p.Run(context.Background(), "steel_plate", []Item{
				{Params: map[string]any{"grade": "Q235B", "thickness": "5"}},
			})
			if err != nil {
				t.Fatal(err)
			}
			o := summary.Outcomes[0]
			if o.Status != StatusExists || o.Name != "ITEM-OLD" {
				t.Fatalf("outcome = %+v", o)
			}
			if store.writes() != 0 {
				t.Fatalf("no writes expected, got calls %v", store.calls)
			}
		})
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	store := newFakeStore()
	seedGrades(store, "Q235B")
	p := newPlanner(store, plateProfile(), ModeUpsert, false)

	hash := md5hex("grade=Q235B|thickness=5|width=1500")
	store.seed("Item", map[string]any{
		"name":              "ITEM-OLD",
		"custom_param_hash": hash,
		"uoms": []any{
			map[string]any{"uom": "Nos", "conversion_factor": float64(1)},
		},
	})

	summary, err := p.Run(context.Background(), "steel_plate", []Item{
		{Params: map[string]any{"grade": "Q235B", "thickness": "5"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	o := summary.Outcomes[0]
	if o.Status != StatusUpdated || o.Name != "ITEM-OLD" {
		t.Fatalf("outcome = %+v", o)
	}
	// One merge write plus one uom write (the Kg row is new).
	if store.writes() != 2 {
		t.Fatalf("writes = %d, calls %v", store.writes(), store.calls)
	}

	doc := store.find("Item", map[string]any{"name": "ITEM-OLD"})
	rows, ok := doc["uoms"].([]map[string]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("uoms not reconciled: %#v", doc["uoms"])
	}
	if rows[0]["uom"] != "Nos" || rows[0]["conversion_factor"] != float64(1) {
		t.Fatalf("unrelated uom row touched: %#v", rows[0])
	}
	if rows[1]["uom"] != "Kg" || rows[1]["conversion_factor"] != float64(10) {
		t.Fatalf("computed uom row wrong: %#v", rows[1])
	}
}

func TestUpsertSkipsUomWriteWhenUnchanged(t *testing.T) {
	store := newFakeStore()
	seedGrades(store, "Q235B")
	p := newPlanner(store, plateProfile(), ModeUpsert, false)

	hash := md5hex("grade=Q235B|thickness=5|width=1500")
	store.seed("Item", map[string]any{
		"name":              "ITEM-OLD",
		"custom_param_hash": hash,
		"uoms": []any{
			map[string]any{"uom": "Kg", "conversion_factor": float64(10)},
		},
	})

	_, err := p.Run(context.Background(), "steel_plate", []Item{
		{Params: map[string]any{"grade": "Q235B", "thickness": "5"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if store.writes() != 1 {
		t.Fatalf("expected exactly the merge write, calls %v", store.calls)
	}
}

func TestCreateWhenNoMatch(t *testing.T) {
	store := newFakeStore()
	seedGrades(store, "Q235B")
	p := newPlanner(store, plateProfile(), ModeCreateOnly, false)

	summary, err := p.Run(context.Background(), "steel_plate", []Item{
		{Params: map[string]any{"grade": "Q235B", "thickness": "5.0"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	o := summary.Outcomes[0]
	if o.Status != StatusCreated || o.Name == "" {
		t.Fatalf("outcome = %+v", o)
	}

	doc := store.find("Item", map[string]any{"name": o.Name})
	if doc["custom_grade"] != "Q235B" || doc["custom_thickness"] != "5" {
		t.Fatalf("bound fields wrong: %#v", doc)
	}
	if doc["item_group"] != "Steel Plates" {
		t.Fatalf("item_group missing: %#v", doc)
	}
	if doc["custom_unique_item_name"] != o.ID || doc["custom_param_hash"] != o.Hash {
		t.Fatalf("identity fields wrong: %#v", doc)
	}
	// width is context-only (no binding flag) and must not be written.
	if _, bound := doc["width"]; bound {
		t.Fatalf("context-only parameter leaked into payload: %#v", doc)
	}
	uoms, ok := doc["uoms"].([]Uom)
	if !ok || len(uoms) != 1 || uoms[0].ConversionFactor != 10 {
		t.Fatalf("uoms = %#v", doc["uoms"])
	}
}

func TestDryRunNeverWrites(t *testing.T) {
	for _, existing := range []bool{false, true} {
		store := newFakeStore()
		seedGrades(store, "Q235B")
		if existing {
			hash := md5hex("grade=Q235B|thickness=5|width=1500")
			store.seed("Item", map[string]any{"name": "ITEM-OLD", "custom_param_hash": hash})
		}
		p := newPlanner(store, plateProfile(), ModeUpsert, true)

		summary, err := p.Run(context.Background(), "steel_plate", []Item{
			{Params: map[string]any{"grade": "Q235B", "thickness": "5"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		o := summary.Outcomes[0]
		if o.Status != StatusDryRun {
			t.Fatalf("outcome = %+v", o)
		}
		if store.writes() != 0 {
			t.Fatalf("dry run issued writes: %v", store.calls)
		}
		if len(o.DataKeys) == 0 {
			t.Fatal("dry run must still expose the computed payload keys")
		}
	}
}

func TestBatchPartialFailure(t *testing.T) {
	store := newFakeStore()
	seedGrades(store, "Q235B")
	p := newPlanner(store, plateProfile(), ModeCreateOnly, false)

	items := []Item{
		{Params: map[string]any{"grade": "Q235B", "thickness": "1"}},
		{Params: map[string]any{"grade": "Q235B", "thickness": "2"}},
		{Params: map[string]any{"grade": "UNKNOWN", "thickness": "3"}}, // invalid doctype
		{Params: map[string]any{"grade": "Q235B", "thickness": "4"}},
		{Params: map[string]any{"grade": "Q235B", "thickness": "5"}},
	}
	summary, err := p.Run(context.Background(), "steel_plate", items)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Outcomes) != 5 {
		t.Fatalf("outcomes = %d", len(summary.Outcomes))
	}
	bad := summary.Outcomes[2]
	if bad.Status != StatusError {
		t.Fatalf("item 3 = %+v", bad)
	}
	if len(bad.Errors) != 1 || bad.Errors[0] != "invalid doctype value: grade=UNKNOWN (doctype=Steel Grade)" {
		t.Fatalf("item 3 errors = %v", bad.Errors)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if summary.Outcomes[i].Status != StatusCreated {
			t.Fatalf("item %d = %+v", i+1, summary.Outcomes[i])
		}
	}
	if summary.Errors != 1 || summary.Created != 4 || summary.Count != 5 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestValidationErrorNeverCreates(t *testing.T) {
	store := newFakeStore()
	p := newPlanner(store, plateProfile(), ModeCreateOnly, false)

	summary, err := p.Run(context.Background(), "steel_plate", []Item{
		{Params: map[string]any{"grade": "GHOST", "thickness": "5"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Outcomes[0].Status != StatusError {
		t.Fatalf("outcome = %+v", summary.Outcomes[0])
	}
	if store.writes() != 0 {
		t.Fatalf("invalid item was written: %v", store.calls)
	}
}

func TestTransportFailureAbortsBatch(t *testing.T) {
	store := newFakeStore()
	seedGrades(store, "Q235B")
	p := newPlanner(store, plateProfile(), ModeCreateOnly, false)

	items := []Item{
		{Params: map[string]any{"grade": "Q235B", "thickness": "1"}},
		{Params: map[string]any{"grade": "Q235B", "thickness": "2"}},
		{Params: map[string]any{"grade": "Q235B", "thickness": "3"}},
	}

	// First two items go through, then the wire dies.
	s := &countingStore{fakeStore: store, failAfterCreates: 2}
	p.Store = s
	summary, err := p.Run(context.Background(), "steel_plate", items)
	if err == nil {
		t.Fatal("expected transport error to abort the batch")
	}
	if !strings.Contains(err.Error(), "item 3") {
		t.Fatalf("error must name the failing item: %v", err)
	}
	if len(summary.Outcomes) != 2 {
		t.Fatalf("processed boundary lost: %d outcomes", len(summary.Outcomes))
	}
	if s.creates != 3 { // two successful creates plus the failing attempt
		t.Fatalf("creates = %d", s.creates)
	}
}

type countingStore struct {
	*fakeStore
	creates          int
	failAfterCreates int
}

func (c *countingStore) CreateDocument(ctx context.Context, collection string, fields map[string]any) (map[string]any, error) {
	c.creates++
	if c.creates > c.failAfterCreates {
		return nil, errors.New("connection reset")
	}
	return c.fakeStore.CreateDocument(ctx, collection, fields)
}

func TestUomExpressionCoercesToZeroOnFailure(t *testing.T) {
	prof := plateProfile()
	prof.UomRules = []profile.UomRule{
		{Uom: "Kg", ConversionFactorExpr: "{{ missing_param * 2 }}"},
		{Uom: "Meter", ConversionFactor: 6},
	}
	p := newPlanner(newFakeStore(), prof, ModeUpsert, false)

	uoms := p.BuildUoms(map[string]any{})
	if len(uoms) != 2 {
		t.Fatalf("uoms = %+v", uoms)
	}
	if uoms[0].ConversionFactor != 0 {
		t.Fatalf("invalid expression must coerce to zero, got %v", uoms[0].ConversionFactor)
	}
	if uoms[1].ConversionFactor != 6 {
		t.Fatalf("literal factor = %v", uoms[1].ConversionFactor)
	}
}

func TestParseMode(t *testing.T) {
	for _, ok := range []string{"create_only", "skip_existing", "upsert"} {
		if _, err := ParseMode(ok); err != nil {
			t.Fatalf("ParseMode(%q): %v", ok, err)
		}
	}
	if _, err := ParseMode("replace"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
