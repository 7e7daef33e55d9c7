// Package attrs orders and filters feature attributes for inspection panels.
package attrs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

// Attribute is one named attribute value.
type Attribute struct {
	Name  string
	Value any
}

// Attributes is a feature's attributes in encounter order.
type Attributes []Attribute

// Get returns the value of the first attribute called name.
func (a Attributes) Get(name string) (any, bool) {
	for _, at := range a {
		if at.Name == name {
			return at.Value, true
		}
	}
	return nil, false
}

// Without returns a copy of a with every attribute called name removed.
func (a Attributes) Without(name string) Attributes {
	out := make(Attributes, 0, len(a))
	for _, at := range a {
		if at.Name != name {
			out = append(out, at)
		}
	}
	return out
}

// Parse reads a JSON object, keeping its members in document order.
// Anything other than an object yields no attributes.
func Parse(raw []byte) Attributes {
	return fromResult(gjson.ParseBytes(raw))
}

// FromFeatureJSON reads the properties of feature i straight from a raw
// FeatureCollection document, in document order.
func FromFeatureJSON(doc []byte, i int) (Attributes, bool) {
	f := gjson.GetBytes(doc, "features."+strconv.Itoa(i))
	if !f.Exists() {
		return nil, false
	}
	return fromResult(f.Get("properties")), true
}

func fromResult(r gjson.Result) Attributes {
	if !r.IsObject() {
		return nil
	}
	var out Attributes
	r.ForEach(func(k, v gjson.Result) bool {
		out = append(out, Attribute{Name: k.String(), Value: jsonValue(v)})
		return true
	})
	return out
}

// jsonValue maps a gjson value onto the types encoding/json would produce.
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	}
	var x any
	if err := json.Unmarshal([]byte(v.Raw), &x); err != nil {
		return v.Raw
	}
	return x
}

// FromProperties converts a decoded property map. Go maps carry no order,
// so names are sorted to keep output stable.
func FromProperties(props geojson.Properties) Attributes {
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(Attributes, 0, len(names))
	for _, k := range names {
		out = append(out, Attribute{Name: k, Value: props[k]})
	}
	return out
}

// Row is a display-ready attribute.
type Row struct {
	Name  string `json:"name" doc:"Attribute name"`
	Value string `json:"value" doc:"Formatted attribute value"`
}

// DefaultDeny lists computed geometry fields exported by common GIS tools.
var DefaultDeny = []string{
	"OBJECTID", "FID", "Shape__Area", "Shape__Length", "Shape_Area", "Shape_Length",
	"SHAPE_Area", "SHAPE_Length", "GlobalID",
}

// Selector orders attributes for display. Names in Deny are never shown.
type Selector struct {
	Deny map[string]bool
}

// NewSelector builds a selector that hides the given names.
func NewSelector(deny ...string) Selector {
	s := Selector{Deny: make(map[string]bool, len(deny))}
	for _, d := range deny {
		s.Deny[d] = true
	}
	return s
}

// Select returns at most limit rows: preferred names first, in preference
// order, then every other attribute in encounter order. Denied names and
// null or empty values are skipped.
func (s Selector) Select(a Attributes, preference []string, limit int) []Row {
	if limit <= 0 {
		return nil
	}

	rows := make([]Row, 0, min(limit, len(a)))
	used := make(map[string]bool, len(a))

	add := func(name string, v any) bool {
		if used[name] || s.Deny[name] {
			return true
		}
		used[name] = true
		if isBlank(v) {
			return true
		}
		rows = append(rows, Row{Name: name, Value: FormatValue(v)})
		return len(rows) < limit
	}

	for _, name := range preference {
		v, ok := a.Get(name)
		if !ok {
			continue
		}
		if !add(name, v) {
			return rows
		}
	}
	for _, at := range a {
		if !add(at.Name, at.Value) {
			return rows
		}
	}
	return rows
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

// Title picks a heading for an inspection panel: Name, name or TITLE when
// present and non-empty, otherwise fallback.
func Title(a Attributes, fallback string) string {
	for _, k := range []string{"Name", "name", "TITLE"} {
		if v, ok := a.Get(k); ok && !isBlank(v) {
			return FormatValue(v)
		}
	}
	return fallback
}

// FormatValue renders an attribute value as text. Whole numbers print
// without a fraction, so 12.0 reads as "12".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
