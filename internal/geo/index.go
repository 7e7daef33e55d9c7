package geo

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Index is an R-tree over the features of one collection, used to answer
// "what is under the pointer" for attribute inspection.
type Index struct {
	fc    *geojson.FeatureCollection
	rtree *rtreego.Rtree
	size  int
}

// indexedFeature wraps a feature position for R-tree storage.
type indexedFeature struct {
	idx   int
	bound orb.Bound
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return rect(f.bound, 0)
}

// rect converts a bound to an rtreego rectangle. R-tree rectangles need
// non-zero sides, so points and axis-aligned lines are padded.
func rect(b orb.Bound, pad float64) rtreego.Rect {
	const epsilon = 1e-9
	point := rtreego.Point{b.Min[0] - pad, b.Min[1] - pad}
	w := b.Max[0] - b.Min[0] + 2*pad
	h := b.Max[1] - b.Min[1] + 2*pad
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	r, _ := rtreego.NewRect(point, []float64{w, h})
	return r
}

// NewIndex builds an index over fc. Features without a locatable geometry
// are left out.
func NewIndex(fc *geojson.FeatureCollection) *Index {
	ix := &Index{fc: fc, rtree: rtreego.NewTree(2, 25, 50)}
	if fc == nil {
		return ix
	}
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b, ok := GeometryExtent(f.Geometry).Bound()
		if !ok {
			continue
		}
		ix.rtree.Insert(&indexedFeature{idx: i, bound: b})
		ix.size++
	}
	return ix
}

// Len returns the number of indexed features.
func (ix *Index) Len() int { return ix.size }

// Hit is a feature found under a query point.
type Hit struct {
	Index   int
	Feature *geojson.Feature
}

// At returns the features whose geometry contains p (polygons) or lies
// within tolerance degrees of it (points and lines), in collection order.
func (ix *Index) At(p orb.Point, tolerance float64) []Hit {
	if ix == nil || ix.size == 0 {
		return nil
	}
	query := rect(orb.Bound{Min: p, Max: p}, tolerance)

	var hits []Hit
	for _, s := range ix.rtree.SearchIntersect(query) {
		indexed := s.(*indexedFeature)
		f := ix.fc.Features[indexed.idx]
		if touches(f.Geometry, p, tolerance) {
			hits = append(hits, Hit{Index: indexed.idx, Feature: f})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Index < hits[j].Index })
	return hits
}

func touches(g orb.Geometry, p orb.Point, tolerance float64) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, p) {
			return true
		}
	case orb.Collection:
		for _, c := range geom {
			if touches(c, p, tolerance) {
				return true
			}
		}
		return false
	}
	return planar.DistanceFrom(g, p) <= tolerance
}
