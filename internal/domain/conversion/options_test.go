package conversion

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	if o.Units != "meter" || o.TriangulationTolerance != 0.001 || !o.WeldVertices || o.IncludeProperties || o.LOD != LODMedium {
		t.Fatalf("DefaultOptions() = %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() error = %v", err)
	}
}

func TestParseOptionsQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  Options
	}{
		{
			name:  "empty uses defaults",
			query: "",
			want:  DefaultOptions(),
		},
		{
			name:  "all set",
			query: "units=millimeter&triangulation_tolerance=0.05&weld_vertices=no&include_properties=Y&lod=HIGH",
			want:  Options{Units: "millimeter", TriangulationTolerance: 0.05, WeldVertices: false, IncludeProperties: true, LOD: LODHigh},
		},
		{
			name:  "unparsable values fall back",
			query: "triangulation_tolerance=abc&weld_vertices=maybe&include_properties=2&lod=ultra",
			want:  DefaultOptions(),
		},
		{
			name:  "numeric booleans",
			query: "weld_vertices=0&include_properties=1",
			want:  Options{Units: "meter", TriangulationTolerance: 0.001, WeldVertices: false, IncludeProperties: true, LOD: LODMedium},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if got := ParseOptionsQuery(q); got != tt.want {
				t.Fatalf("ParseOptionsQuery(%q) = %+v; want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseOptionsJSON(t *testing.T) {
	t.Parallel()

	got, err := ParseOptionsJSON([]byte(`{"lod":"low","unknown":1}`))
	if err != nil {
		t.Fatalf("ParseOptionsJSON() error = %v", err)
	}
	want := DefaultOptions()
	want.LOD = LODLow
	if got != want {
		t.Fatalf("ParseOptionsJSON() = %+v; want %+v", got, want)
	}

	if got, err := ParseOptionsJSON(nil); err != nil || got != DefaultOptions() {
		t.Fatalf("ParseOptionsJSON(nil) = %+v, %v; want defaults", got, err)
	}
	if _, err := ParseOptionsJSON([]byte(`{"lod":`)); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("ParseOptionsJSON(malformed) error = %v; want ErrInvalidOptions", err)
	}
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	mutate := func(f func(*Options)) Options {
		o := DefaultOptions()
		f(&o)
		return o
	}
	invalid := map[string]Options{
		"empty units":  mutate(func(o *Options) { o.Units = " " }),
		"zero tol":     mutate(func(o *Options) { o.TriangulationTolerance = 0 }),
		"negative tol": mutate(func(o *Options) { o.TriangulationTolerance = -1 }),
		"NaN tol":      mutate(func(o *Options) { o.TriangulationTolerance = math.NaN() }),
		"infinite tol": mutate(func(o *Options) { o.TriangulationTolerance = math.Inf(1) }),
		"unknown lod":  mutate(func(o *Options) { o.LOD = "ultra" }),
	}
	for name, o := range invalid {
		if err := o.Validate(); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("%s: Validate() error = %v; want ErrInvalidOptions", name, err)
		}
	}
}

func TestOptions_JSON_SnakeCaseKeys(t *testing.T) {
	t.Parallel()

	var m map[string]any
	if err := json.Unmarshal([]byte(DefaultOptions().JSON()), &m); err != nil {
		t.Fatalf("JSON() is not valid JSON: %v", err)
	}
	for _, key := range []string{"units", "triangulation_tolerance", "weld_vertices", "include_properties", "lod"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON() missing key %q", key)
		}
	}
	if m["lod"] != "medium" {
		t.Errorf("lod = %v; want medium", m["lod"])
	}
}
