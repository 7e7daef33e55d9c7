// Package geo computes extents, detects projected coordinates and indexes
// feature collections for hit testing.
//
// Collections are paulmach/orb GeoJSON collections. Nothing in this package
// mutates a collection it was handed.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Extent is an axis-aligned rectangle in geographic degrees.
// The zero value is the absent extent.
type Extent struct {
	bound orb.Bound
	ok    bool
}

// NewExtent returns the extent spanning the two corners in any order.
func NewExtent(minX, minY, maxX, maxY float64) Extent {
	var e Extent
	e = e.extend(minX, minY)
	return e.extend(maxX, maxY)
}

// IsEmpty reports whether the extent is absent.
func (e Extent) IsEmpty() bool { return !e.ok }

// Bound returns the rectangle and false when the extent is absent.
func (e Extent) Bound() (orb.Bound, bool) { return e.bound, e.ok }

// Array returns [minX, minY, maxX, maxY], or nil when absent.
func (e Extent) Array() []float64 {
	if !e.ok {
		return nil
	}
	return []float64{e.bound.Min[0], e.bound.Min[1], e.bound.Max[0], e.bound.Max[1]}
}

// Center returns the midpoint of a present extent.
func (e Extent) Center() (orb.Point, bool) {
	if !e.ok {
		return orb.Point{}, false
	}
	return e.bound.Center(), true
}

// Contains reports whether p lies inside or on the edge of the extent.
func (e Extent) Contains(p orb.Point) bool {
	return e.ok && e.bound.Contains(p)
}

func (e Extent) extend(x, y float64) Extent {
	if !finite(x) || !finite(y) {
		return e
	}
	if !e.ok {
		return Extent{bound: orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x, y}}, ok: true}
	}
	e.bound.Min[0] = math.Min(e.bound.Min[0], x)
	e.bound.Min[1] = math.Min(e.bound.Min[1], y)
	e.bound.Max[0] = math.Max(e.bound.Max[0], x)
	e.bound.Max[1] = math.Max(e.bound.Max[1], y)
	return e
}

// Merge returns the smallest extent covering a and b. An absent operand
// yields the other one unchanged.
func Merge(a, b Extent) Extent {
	switch {
	case !a.ok:
		return b
	case !b.ok:
		return a
	}
	return Extent{bound: a.bound.Union(b.bound), ok: true}
}

// MergeAll folds Merge over the given extents.
func MergeAll(extents ...Extent) Extent {
	var out Extent
	for _, e := range extents {
		out = Merge(out, e)
	}
	return out
}

// ExtentOf walks every feature geometry in fc. Features without a geometry
// and non-finite coordinates are skipped.
func ExtentOf(fc *geojson.FeatureCollection) Extent {
	var e Extent
	if fc == nil {
		return e
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		walkPoints(f.Geometry, func(p orb.Point) {
			e = e.extend(p[0], p[1])
		})
	}
	return e
}

// GeometryExtent is ExtentOf for a single geometry.
func GeometryExtent(g orb.Geometry) Extent {
	var e Extent
	walkPoints(g, func(p orb.Point) {
		e = e.extend(p[0], p[1])
	})
	return e
}

// walkPoints calls fn for each coordinate in g, descending through multi
// geometries and collections.
func walkPoints(g orb.Geometry, fn func(orb.Point)) {
	switch geom := g.(type) {
	case orb.Point:
		fn(geom)
	case orb.MultiPoint:
		for _, p := range geom {
			fn(p)
		}
	case orb.LineString:
		for _, p := range geom {
			fn(p)
		}
	case orb.Ring:
		for _, p := range geom {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range geom {
			walkPoints(ls, fn)
		}
	case orb.Polygon:
		for _, r := range geom {
			walkPoints(r, fn)
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			walkPoints(p, fn)
		}
	case orb.Collection:
		for _, c := range geom {
			walkPoints(c, fn)
		}
	case orb.Bound:
		fn(geom.Min)
		fn(geom.Max)
	}
}

// MaxMagnitude returns the largest absolute finite coordinate value on
// either axis, or 0 when fc has no finite coordinates.
func MaxMagnitude(fc *geojson.FeatureCollection) float64 {
	e := ExtentOf(fc)
	b, ok := e.Bound()
	if !ok {
		return 0
	}
	m := 0.0
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
