package zone

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// DefaultHexResolution matches the upstream H3 resolution used for the
// hex layer (cells of roughly 0.1 km^2).
const DefaultHexResolution = 9

// HexMapper hashes coordinates into H3 cells at a fixed resolution.
// Mapping is O(1), side effect free and always succeeds for valid
// coordinates.
type HexMapper struct {
	scheme     string
	resolution int
}

// NewHexMapper creates a hex-grid mapper. A resolution of 0 selects the
// default.
func NewHexMapper(scheme string, resolution int) (*HexMapper, error) {
	if resolution == 0 {
		resolution = DefaultHexResolution
	}
	if resolution < 0 || resolution > h3.MaxResolution {
		return nil, fmt.Errorf("invalid h3 resolution %d", resolution)
	}
	return &HexMapper{scheme: scheme, resolution: resolution}, nil
}

// Scheme returns the scheme name.
func (m *HexMapper) Scheme() string { return m.scheme }

// Map returns the H3 cell token for the coordinate.
func (m *HexMapper) Map(lat, lon float64) (string, bool) {
	if !validCoordinate(lat, lon) {
		return "", false
	}
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lon), m.resolution)
	if !cell.IsValid() {
		return "", false
	}
	return cell.String(), true
}
