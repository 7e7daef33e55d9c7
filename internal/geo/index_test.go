package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestIndexAt(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}))
	fc.Append(geojson.NewFeature(orb.Point{5, 5}))
	fc.Append(geojson.NewFeature(orb.LineString{{20, 20}, {30, 20}}))
	fc.Append(geojson.NewFeature(nil))

	ix := NewIndex(fc)
	if ix.Len() != 3 {
		t.Fatalf("len=%d, want 3", ix.Len())
	}

	hits := ix.At(orb.Point{5, 5}, 0.01)
	if len(hits) != 2 || hits[0].Index != 0 || hits[1].Index != 1 {
		t.Fatalf("hits=%v, want polygon then point", hits)
	}

	hits = ix.At(orb.Point{25, 20.005}, 0.01)
	if len(hits) != 1 || hits[0].Index != 2 {
		t.Fatalf("hits=%v, want the line", hits)
	}

	if hits := ix.At(orb.Point{50, 50}, 0.01); len(hits) != 0 {
		t.Fatalf("hits=%v, want none", hits)
	}
}

func TestIndexEmpty(t *testing.T) {
	ix := NewIndex(nil)
	if ix.Len() != 0 {
		t.Fatal("nil collection should index nothing")
	}
	if hits := ix.At(orb.Point{0, 0}, 1); hits != nil {
		t.Fatalf("hits=%v, want nil", hits)
	}
}
