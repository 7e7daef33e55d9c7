package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// ProjectedThreshold is the coordinate magnitude above which a collection is
// treated as spherical Mercator meters. Geographic values never exceed 180,
// and values past 400 are unambiguous. Between the two the collection is left
// alone.
const ProjectedThreshold = 400.0

// IsProjected reports whether fc looks like it carries projected meters.
//
// This is a magnitude heuristic, not a reading of any CRS metadata: a small
// projected dataset near the Mercator origin passes as geographic.
func IsProjected(fc *geojson.FeatureCollection) bool {
	return MaxMagnitude(fc) > ProjectedThreshold
}

// Normalize returns fc in WGS84 longitude/latitude. Collections that already
// look geographic are returned as-is; projected ones are deep-copied and
// run through the inverse spherical Mercator (EPSG:3857 to EPSG:4326).
func Normalize(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil || !IsProjected(fc) {
		return fc
	}
	return Reproject(fc, project.Mercator.ToWGS84)
}

// Reproject returns a copy of fc with proj applied to every coordinate.
// The input collection is not modified.
func Reproject(fc *geojson.FeatureCollection, proj orb.Projection) *geojson.FeatureCollection {
	out := Clone(fc)
	for _, f := range out.Features {
		if f.Geometry == nil {
			continue
		}
		f.Geometry = project.Geometry(f.Geometry, proj)
		// a stale bbox would still be in meters
		f.BBox = nil
	}
	out.BBox = nil
	return out
}

// Clone deep-copies a collection, including geometries and properties.
func Clone(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	if fc.BBox != nil {
		out.BBox = append(geojson.BBox(nil), fc.BBox...)
	}
	if fc.ExtraMembers != nil {
		out.ExtraMembers = fc.ExtraMembers.Clone()
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		out.Append(CloneFeature(f))
	}
	return out
}

// CloneFeature deep-copies a single feature.
func CloneFeature(f *geojson.Feature) *geojson.Feature {
	c := &geojson.Feature{
		ID:         f.ID,
		Type:       f.Type,
		Properties: f.Properties.Clone(),
	}
	if c.Properties == nil {
		c.Properties = geojson.Properties{}
	}
	if f.Geometry != nil {
		c.Geometry = orb.Clone(f.Geometry)
	}
	if f.BBox != nil {
		c.BBox = append(geojson.BBox(nil), f.BBox...)
	}
	return c
}
