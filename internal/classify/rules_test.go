package classify

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func poiRules(t *testing.T) RuleSet {
	t.Helper()
	rs, err := Compile(RuleSetSpec{
		Attr: "Name",
		Rules: []RuleSpec{
			{Label: "landmark", In: []string{"Security", "Sky Ride Tower"}},
			{Label: "smoking", In: []string{"Smoking Area"}},
			{Label: "vehicle", In: []string{"Disables Parking", "VIP Parking", "Park Entrance"}},
			{Label: "service", In: []string{"Guest Services / Lost & Found", "Sea Pixles", "Reservations"}},
		},
		Default: "other",
	})
	if err != nil {
		t.Fatalf("compiling: %v", err)
	}
	return rs
}

func feature(props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties = props
	return f
}

func TestClassifyPOI(t *testing.T) {
	rs := poiRules(t)
	cases := map[string]string{
		"Security":      "landmark",
		"Smoking Area":  "smoking",
		"VIP Parking":   "vehicle",
		"Reservations":  "service",
		"Dolphin Point": "other",
	}
	for name, want := range cases {
		if got := rs.Classify(feature(geojson.Properties{"Name": name})); got != want {
			t.Errorf("Classify(%q)=%q, want %q", name, got, want)
		}
	}

	if got := rs.Classify(feature(nil)); got != "other" {
		t.Errorf("attribute-less feature got %q, want default", got)
	}
	if got := rs.Classify(nil); got != "other" {
		t.Errorf("nil feature got %q, want default", got)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	rs := RuleSet{
		Rules: []Rule{
			{Label: "first", When: Exists{Attr: "A"}},
			{Label: "second", When: Exists{Attr: "A"}},
		},
		Default: "none",
	}
	if got := rs.Classify(feature(geojson.Properties{"A": 1.0})); got != "first" {
		t.Fatalf("got %q, want first", got)
	}
	if got := rs.Classify(feature(geojson.Properties{"A": ""})); got != "none" {
		t.Fatalf("empty string should not satisfy Exists, got %q", got)
	}
}

func TestClassifyIsPure(t *testing.T) {
	rs := poiRules(t)
	names := []string{"Security", "Smoking Area", "Nope", "Park Entrance", "Reservations", "Other"}

	fc := geojson.NewFeatureCollection()
	for _, n := range names {
		fc.Append(feature(geojson.Properties{"Name": n}))
	}
	forward := ClassifyAll(fc, rs)

	reversed := geojson.NewFeatureCollection()
	for i := len(fc.Features) - 1; i >= 0; i-- {
		reversed.Append(fc.Features[i])
	}
	backward := ClassifyAll(reversed, rs)

	for i := range forward {
		if forward[i] != backward[len(backward)-1-i] {
			t.Fatalf("feature %d classified %q forward, %q reversed", i, forward[i], backward[len(backward)-1-i])
		}
		if again := rs.Classify(fc.Features[i]); again != forward[i] {
			t.Fatalf("feature %d classified %q then %q", i, forward[i], again)
		}
	}
}

func TestClassifyAllLarge(t *testing.T) {
	rs := poiRules(t)
	fc := geojson.NewFeatureCollection()
	for i := 0; i < 5000; i++ {
		name := "Security"
		if i%2 == 1 {
			name = "Elsewhere"
		}
		fc.Append(feature(geojson.Properties{"Name": name}))
	}
	h := Histogram(ClassifyAll(fc, rs))
	if h["landmark"] != 2500 || h["other"] != 2500 {
		t.Fatalf("histogram=%v", h)
	}
}

func TestExprRules(t *testing.T) {
	rs, err := Compile(RuleSetSpec{
		Rules: []RuleSpec{
			{Label: "thrill", When: `Type == "Ride" and AgeGroup == "Adult"`},
			{Label: "family", When: `Type == "Ride"`},
			{Label: "cheap", When: `Price < 10`},
		},
		Default: "other",
	})
	if err != nil {
		t.Fatalf("compiling: %v", err)
	}

	cases := []struct {
		props geojson.Properties
		want  string
	}{
		{geojson.Properties{"Type": "Ride", "AgeGroup": "Adult"}, "thrill"},
		{geojson.Properties{"Type": "Ride", "AgeGroup": "Kids"}, "family"},
		{geojson.Properties{"Type": "Food", "Price": 4.5}, "cheap"},
		{geojson.Properties{"Type": "Food", "Price": "free"}, "other"},
		{geojson.Properties{}, "other"},
	}
	for _, tc := range cases {
		if got := rs.Classify(feature(tc.props)); got != tc.want {
			t.Errorf("Classify(%v)=%q, want %q", tc.props, got, tc.want)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]RuleSetSpec{
		"no label":   {Rules: []RuleSpec{{Attr: "Name"}}},
		"no matcher": {Rules: []RuleSpec{{Label: "x"}}},
		"bad expr":   {Rules: []RuleSpec{{Label: "x", When: `Type ==`}}},
	}
	for name, spec := range cases {
		if _, err := Compile(spec); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	_, err := Compile(cases["bad expr"])
	if !strings.Contains(err.Error(), "rule 0 (x)") {
		t.Errorf("error %q should name the rule", err)
	}
}

func TestPredicates(t *testing.T) {
	props := geojson.Properties{"ID": 12.0, "Veg": true, "Name": "Cafe"}

	if !Equals("ID", "12").Match(props) {
		t.Error("numeric value should match its string form")
	}
	if !Equals("Veg", "true").Match(props) {
		t.Error("boolean value should match its string form")
	}
	if !(All{Exists{Attr: "Name"}, Not{Equals("Name", "Bar")}}).Match(props) {
		t.Error("All/Not combination failed")
	}
	if (Any{Exists{Attr: "Missing"}, Equals("Name", "Bar")}).Match(props) {
		t.Error("Any should not match")
	}
	if !(All{}).Match(props) {
		t.Error("empty All should match")
	}
}

func TestLabels(t *testing.T) {
	got := strings.Join(poiRules(t).Labels(), ",")
	if got != "landmark,smoking,vehicle,service,other" {
		t.Fatalf("labels=%s", got)
	}
}

func TestAnnotate(t *testing.T) {
	rs := poiRules(t)
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(geojson.Properties{"Name": "Security"}))
	fc.Append(feature(nil))

	out := Annotate(fc, rs, "category")
	if out.Features[0].Properties["category"] != "landmark" || out.Features[1].Properties["category"] != "other" {
		t.Fatalf("annotated=%v / %v", out.Features[0].Properties, out.Features[1].Properties)
	}
	if _, ok := fc.Features[0].Properties["category"]; ok {
		t.Fatal("input properties were modified")
	}
}

func TestGeometryKind(t *testing.T) {
	cases := []struct {
		geoms []orb.Geometry
		want  Kind
	}{
		{[]orb.Geometry{nil, orb.LineString{{0, 0}, {1, 1}}}, KindLine},
		{[]orb.Geometry{orb.MultiPoint{{0, 0}}}, KindPoint},
		{[]orb.Geometry{orb.MultiPolygon{}}, KindPolygon},
		{[]orb.Geometry{orb.Collection{orb.Point{1, 1}}}, KindPoint},
		{nil, KindUnknown},
	}
	for _, tc := range cases {
		fc := geojson.NewFeatureCollection()
		for _, g := range tc.geoms {
			fc.Append(geojson.NewFeature(g))
		}
		if got := GeometryKind(fc); got != tc.want {
			t.Errorf("GeometryKind(%v)=%q, want %q", tc.geoms, got, tc.want)
		}
	}
	if DefaultSymbol(KindLine).Color != "#7CFF6B" {
		t.Error("unexpected line symbol")
	}
}
