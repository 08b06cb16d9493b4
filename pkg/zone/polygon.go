package zone

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

// zoneFeature is one indexed zone polygon.
type zoneFeature struct {
	id       string
	geometry orb.Geometry
}

// PolygonMapper resolves coordinates against a GeoJSON FeatureCollection of
// zone polygons. Feature bounding boxes are bulk-loaded into an R-tree; a
// lookup queries the tree for candidates near the point and resolves the
// match with exact point-in-polygon containment. The first containing
// feature wins.
//
// The tree is read-only after construction and safe for concurrent lookups.
type PolygonMapper struct {
	scheme string
	tree   rtree.RTreeG[*zoneFeature]
	count  int
}

// NewPolygonMapper parses a GeoJSON FeatureCollection and indexes every
// polygon feature carrying a stable properties.id. Features without an id
// or with non-polygon geometry are skipped.
func NewPolygonMapper(scheme string, data []byte) (*PolygonMapper, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse zone boundaries: %w", err)
	}

	m := &PolygonMapper{scheme: scheme}
	for _, f := range fc.Features {
		id := f.Properties.MustString("id", "")
		if id == "" {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}

		bound := f.Geometry.Bound()
		zf := &zoneFeature{id: id, geometry: f.Geometry}
		m.tree.Insert(
			[2]float64{bound.Min[0], bound.Min[1]},
			[2]float64{bound.Max[0], bound.Max[1]},
			zf,
		)
		m.count++
	}

	if m.count == 0 {
		return nil, fmt.Errorf("zone boundary collection for scheme %q contains no usable polygons", scheme)
	}
	return m, nil
}

// Scheme returns the scheme name.
func (m *PolygonMapper) Scheme() string { return m.scheme }

// Zones returns the number of indexed zone polygons.
func (m *PolygonMapper) Zones() int { return m.count }

// Map returns the id of the first zone polygon containing the coordinate.
// Points outside every polygon return false and contribute to no zone.
func (m *PolygonMapper) Map(lat, lon float64) (string, bool) {
	if !validCoordinate(lat, lon) {
		return "", false
	}

	pt := orb.Point{lon, lat}
	var matched string
	m.tree.Search([2]float64{lon, lat}, [2]float64{lon, lat},
		func(_, _ [2]float64, zf *zoneFeature) bool {
			if containsPoint(zf.geometry, pt) {
				matched = zf.id
				return false
			}
			return true
		})

	return matched, matched != ""
}

func containsPoint(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	default:
		return false
	}
}
