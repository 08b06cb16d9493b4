// Package zone bins vehicle coordinates into spatial zones.
//
// Two scheme kinds exist: hex (H3 cell hashing at a fixed resolution) and
// polygon (point-in-polygon against a stored GeoJSON collection). Mapping is
// pure and deterministic so a live run and a backfill replay of the same
// coordinates always land in the same zones.
package zone

import (
	"fmt"
	"os"
)

// Scheme kinds.
const (
	KindHex     = "hex"
	KindPolygon = "polygon"
)

// Mapper maps a coordinate to a zone id under one scheme. A false return
// means the point belongs to no zone and the vehicle is dropped from
// metrics; that is an expected outcome, not an error.
type Mapper interface {
	// Scheme returns the scheme name, used as the day-document key suffix.
	Scheme() string

	// Map returns the zone id for the coordinate, or false if the point
	// maps to no zone.
	Map(lat, lon float64) (string, bool)
}

// SchemeSpec describes one configured zone scheme.
type SchemeSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Resolution applies to hex schemes.
	Resolution int `yaml:"resolution,omitempty"`

	// BoundaryFile is the GeoJSON FeatureCollection path for polygon schemes.
	BoundaryFile string `yaml:"boundary_file,omitempty"`
}

// NewMapper builds a Mapper from a scheme spec, loading polygon boundaries
// from disk once.
func NewMapper(spec SchemeSpec) (Mapper, error) {
	switch spec.Kind {
	case KindHex:
		return NewHexMapper(spec.Name, spec.Resolution)
	case KindPolygon:
		data, err := os.ReadFile(spec.BoundaryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read boundary file for scheme %q: %w", spec.Name, err)
		}
		return NewPolygonMapper(spec.Name, data)
	default:
		return nil, fmt.Errorf("unknown zone scheme kind %q", spec.Kind)
	}
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
