package classify

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind is the geometry family of a collection, used to pick a default symbol
// when a dataset declares none.
type Kind string

const (
	KindPoint   Kind = "point"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
	KindUnknown Kind = ""
)

// GeometryKind returns the family of the first feature that has a geometry.
func GeometryKind(fc *geojson.FeatureCollection) Kind {
	if fc == nil {
		return KindUnknown
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if k := kindOf(f.Geometry); k != KindUnknown {
			return k
		}
	}
	return KindUnknown
}

func kindOf(g orb.Geometry) Kind {
	switch geom := g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindPoint
	case orb.LineString, orb.MultiLineString:
		return KindLine
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return KindPolygon
	case orb.Collection:
		for _, c := range geom {
			if k := kindOf(c); k != KindUnknown {
				return k
			}
		}
	}
	return KindUnknown
}

// Symbol is the default paint for a geometry family.
type Symbol struct {
	Kind   Kind    `json:"kind" yaml:"kind"`
	Color  string  `json:"color" yaml:"color"`
	Stroke string  `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	Icon   string  `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// DefaultSymbol returns the stock symbol for a geometry family: bright
// green lines, yellow circles, translucent green fills.
func DefaultSymbol(k Kind) Symbol {
	switch k {
	case KindLine:
		return Symbol{Kind: k, Color: "#7CFF6B", Width: 4}
	case KindPoint:
		return Symbol{Kind: k, Color: "#FFD84A", Stroke: "rgba(0,0,0,.65)", Radius: 6}
	default:
		return Symbol{Kind: KindPolygon, Color: "rgba(124,255,107,.22)", Stroke: "rgba(124,255,107,.85)"}
	}
}
