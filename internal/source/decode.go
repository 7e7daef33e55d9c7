package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

// Decoded is a validated collection plus bookkeeping about what was dropped.
type Decoded struct {
	Collection *geojson.FeatureCollection
	// DroppedGeometries counts features kept with a nil geometry because
	// their geometry member did not decode.
	DroppedGeometries int
	// Properties holds each feature's raw properties object, index-aligned
	// with Collection.Features, so member order survives decoding.
	Properties [][]byte
}

// Decode validates raw content as a GeoJSON FeatureCollection.
//
// Markup is rejected before any JSON parsing, then the document must carry
// type "FeatureCollection" and a features array. Features are decoded one at
// a time so a single malformed geometry degrades to a geometry-less feature
// instead of failing the whole collection. Positions are the exception:
// a position that is not exactly two finite numbers rejects the document.
func Decode(data []byte) (*Decoded, error) {
	if looksLikeMarkup(data) {
		if title := markupTitle(data); title != "" {
			return nil, fmt.Errorf("%w (title %q)", ErrMarkupContent, title)
		}
		return nil, ErrMarkupContent
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrNotJSON
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedCollection)
	}
	if typ := root.Get("type").String(); typ != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type=%q", ErrMalformedCollection, typ)
	}
	features := root.Get("features")
	if !features.IsArray() {
		return nil, fmt.Errorf("%w: features is not an array", ErrMalformedCollection)
	}

	out := &Decoded{Collection: geojson.NewFeatureCollection()}
	var ferr error
	features.ForEach(func(_, raw gjson.Result) bool {
		if !raw.IsObject() {
			ferr = fmt.Errorf("%w: feature is not an object", ErrMalformedCollection)
			return false
		}
		if err := checkGeometry(raw.Get("geometry")); err != nil {
			ferr = fmt.Errorf("%w: feature %d: %v", ErrMalformedCollection, len(out.Collection.Features), err)
			return false
		}
		f, err := geojson.UnmarshalFeature([]byte(raw.Raw))
		if err != nil {
			f, err = propertiesOnly(raw)
			if err != nil {
				ferr = fmt.Errorf("%w: %v", ErrMalformedCollection, err)
				return false
			}
			out.DroppedGeometries++
		}
		out.Collection.Append(f)
		out.Properties = append(out.Properties, []byte(raw.Get("properties").Raw))
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// checkGeometry walks the coordinates of a geometry and rejects positions
// that would otherwise be padded or dropped by the decoder. Coordinates that
// are not arrays at all are left to the decoder.
func checkGeometry(g gjson.Result) error {
	if g.Get("type").String() == "GeometryCollection" {
		var err error
		g.Get("geometries").ForEach(func(_, member gjson.Result) bool {
			err = checkGeometry(member)
			return err == nil
		})
		return err
	}
	coords := g.Get("coordinates")
	if !coords.IsArray() {
		return nil
	}
	return checkPositions(coords)
}

func checkPositions(arr gjson.Result) error {
	items := arr.Array()
	if len(items) == 0 {
		return nil
	}
	if !items[0].IsArray() {
		return checkPosition(items)
	}
	for _, item := range items {
		if !item.IsArray() {
			return fmt.Errorf("mixed nesting in coordinates %s", arr.Raw)
		}
		if err := checkPositions(item); err != nil {
			return err
		}
	}
	return nil
}

func checkPosition(pos []gjson.Result) error {
	if len(pos) != 2 {
		return fmt.Errorf("position has %d values, want 2", len(pos))
	}
	for _, v := range pos {
		if v.Type != gjson.Number {
			return fmt.Errorf("position value %s is not a number", v.Raw)
		}
		if f := v.Float(); math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("position value %s is out of range", v.Raw)
		}
	}
	return nil
}

// propertiesOnly keeps the id and attributes of a feature whose geometry
// could not be decoded.
func propertiesOnly(raw gjson.Result) (*geojson.Feature, error) {
	f := geojson.NewFeature(nil)
	if id := raw.Get("id"); id.Exists() {
		f.ID = id.Value()
	}
	props := raw.Get("properties")
	switch {
	case !props.Exists(), props.Type == gjson.Null:
	case props.IsObject():
		if err := json.Unmarshal([]byte(props.Raw), &f.Properties); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("properties is %s, not an object", props.Type)
	}
	return f, nil
}

// looksLikeMarkup reports content that starts with a tag or doctype, or
// embeds an html element anywhere.
func looksLikeMarkup(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return true
	}
	return bytes.Contains(bytes.ToLower(trimmed), []byte("<html"))
}

// markupTitle pulls the <title> out of an HTML error page for the log line.
func markupTitle(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
