package template

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"facops/internal/render"
)

func steelPlateParams() []Param {
	return []Param{
		{Name: "grade", Kind: KindDoctype, DoctypeSelector: "Steel Grade", JoinToHash: true, BindingField: true, TargetField: "custom_grade", Idx: 1},
		{Name: "thickness", Kind: KindFloat, JoinToHash: true, BindingField: true, TargetField: "custom_thickness", Idx: 2},
		{Name: "width", Kind: KindInteger, Default: "1500", JoinToHash: true, Idx: 3},
		{Name: "item_name", Kind: KindFormat, Default: "PLT {{ grade }} {{ thickness }}x{{ width }}", BindingField: true, TargetField: "item_name", Idx: 4},
		{Name: "remark", Kind: KindPlain, Optional: true, Idx: 5},
	}
}

type fakeLookup struct {
	exists map[string][]string // collection -> known names
	calls  int
}

func (f *fakeLookup) ListOne(ctx context.Context, collection string, filters map[string]any, fields []string) (map[string]any, error) {
	f.calls++
	name, _ := filters["name"].(string)
	for _, known := range f.exists[collection] {
		if known == name {
			return map[string]any{"name": name}, nil
		}
	}
	return nil, nil
}

func TestResolveFillsDefaultsInSequenceOrder(t *testing.T) {
	r := NewResolver(steelPlateParams(), render.New())

	resolved, errs := r.Resolve(map[string]any{"grade": "Q235B", "thickness": 5.0})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if resolved["thickness"] != "5" {
		t.Fatalf("thickness = %#v, want canonical \"5\"", resolved["thickness"])
	}
	if resolved["width"] != int64(1500) {
		t.Fatalf("width = %#v, want 1500", resolved["width"])
	}
	if resolved["item_name"] != "PLT Q235B 5x1500" {
		t.Fatalf("item_name = %#v", resolved["item_name"])
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := NewResolver(steelPlateParams(), render.New())
	user := map[string]any{"grade": "Q235B", "thickness": "5.50", "width": "1800"}

	a, errsA := r.Resolve(user)
	b, errsB := r.Resolve(user)
	if len(errsA) != 0 || len(errsB) != 0 {
		t.Fatalf("unexpected errors: %v %v", errsA, errsB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two resolutions differ:\n%v\n%v", a, b)
	}
}

func TestFormatAlwaysRecomputed(t *testing.T) {
	r := NewResolver(steelPlateParams(), render.New())

	// A user-supplied value for a Format field must be overwritten.
	resolved, _ := r.Resolve(map[string]any{"grade": "Q235B", "thickness": "5", "item_name": "hand-written"})
	if resolved["item_name"] != "PLT Q235B 5x1500" {
		t.Fatalf("item_name = %#v, want recomputed value", resolved["item_name"])
	}
}

func TestUserValueWinsOverDefault(t *testing.T) {
	r := NewResolver(steelPlateParams(), render.New())
	resolved, _ := r.Resolve(map[string]any{"grade": "Q235B", "thickness": "5", "width": 2000})
	if resolved["width"] != int64(2000) {
		t.Fatalf("width = %#v", resolved["width"])
	}
}

func TestRowsResolvedByIdxNotSliceOrder(t *testing.T) {
	params := steelPlateParams()
	// Shuffle slice order; Idx must still win.
	params[0], params[3] = params[3], params[0]
	r := NewResolver(params, render.New())

	resolved, errs := r.Resolve(map[string]any{"grade": "Q235B", "thickness": "5"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if resolved["item_name"] != "PLT Q235B 5x1500" {
		t.Fatalf("item_name = %#v", resolved["item_name"])
	}
}

func TestRenderFailureIsItemError(t *testing.T) {
	params := []Param{
		{Name: "bad", Kind: KindFormat, Default: "{{ ((( }}", Idx: 1},
	}
	r := NewResolver(params, render.New())
	_, errs := r.Resolve(map[string]any{})
	if len(errs) != 1 || !strings.Contains(errs[0], "bad") {
		t.Fatalf("errs = %v", errs)
	}
}

func TestValidateRequired(t *testing.T) {
	r := NewResolver(steelPlateParams(), render.New())
	resolved, _ := r.Resolve(map[string]any{"thickness": "5"}) // grade missing

	errs, err := r.Validate(context.Background(), resolved, &fakeLookup{})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range errs {
		if e == "missing required param: grade" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errs = %v", errs)
	}
}

func TestValidateDoctype(t *testing.T) {
	lookup := &fakeLookup{exists: map[string][]string{"Steel Grade": {"Q235B"}}}
	r := NewResolver(steelPlateParams(), render.New())

	resolved, _ := r.Resolve(map[string]any{"grade": "Q235B", "thickness": "5"})
	errs, err := r.Validate(context.Background(), resolved, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 0 {
		t.Fatalf("valid grade rejected: %v", errs)
	}

	resolved, _ = r.Resolve(map[string]any{"grade": "NOPE", "thickness": "5"})
	errs, err = r.Validate(context.Background(), resolved, lookup)
	if err != nil {
		t.Fatal(err)
	}
	want := "invalid doctype value: grade=NOPE (doctype=Steel Grade)"
	if len(errs) != 1 || errs[0] != want {
		t.Fatalf("errs = %v, want [%s]", errs, want)
	}
}

func TestCanonicalFloat(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{5.0, "5"},
		{"5.0", "5"},
		{5.50, "5.5"},
		{"5.50", "5.5"},
		{5.000001, "5.000001"},
		{nil, ""},
		{"", ""},
		{"not-a-number", ""},
		{1500, "1500"},
	}
	for _, tc := range cases {
		if got := CanonicalFloat(tc.in); got != tc.want {
			t.Errorf("CanonicalFloat(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParamsFromDoc(t *testing.T) {
	doc := map[string]any{
		"parameters": []any{
			map[string]any{
				"parameter_name": "thickness", "constraint_type": "Float",
				"join_to_hash": float64(1), "binding_field": float64(1),
				"target_field": "custom_thickness", "idx": float64(2),
			},
			map[string]any{
				"parameter_name": "grade", "constraint_type": "Doctype",
				"doctype_selector": "Steel Grade", "optional": float64(0), "idx": float64(1),
			},
			map[string]any{"constraint_type": "Float"}, // nameless rows are skipped
		},
	}
	params, err := ParamsFromDoc(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 2 {
		t.Fatalf("got %d params", len(params))
	}
	if params[0].Name != "thickness" || params[0].Kind != KindFloat || !params[0].JoinToHash {
		t.Fatalf("params[0] = %+v", params[0])
	}
	if params[1].DoctypeSelector != "Steel Grade" {
		t.Fatalf("params[1] = %+v", params[1])
	}
}

func TestParamsFromDocNoTable(t *testing.T) {
	if _, err := ParamsFromDoc(map[string]any{}); err == nil {
		t.Fatal("expected error for missing parameters table")
	}
}
