package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Two unit squares side by side: zone-a covers lon [0,1], zone-b covers
// lon [2,3], both lat [0,1].
const testZones = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"id": "zone-a"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"id": "zone-b"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "no id, skipped"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[5,5],[6,5],[6,6],[5,6],[5,5]]]
      }
    }
  ]
}`

func TestPolygonMapper_Contains(t *testing.T) {
	m, err := NewPolygonMapper("1000m", []byte(testZones))
	require.NoError(t, err)
	require.Equal(t, "1000m", m.Scheme())
	require.Equal(t, 2, m.Zones(), "feature without an id must be skipped")

	id, ok := m.Map(0.5, 0.5)
	require.True(t, ok)
	require.Equal(t, "zone-a", id)

	id, ok = m.Map(0.5, 2.5)
	require.True(t, ok)
	require.Equal(t, "zone-b", id)
}

func TestPolygonMapper_OutsideAllZones(t *testing.T) {
	m, err := NewPolygonMapper("1000m", []byte(testZones))
	require.NoError(t, err)

	// Between the two squares: silently unmapped, not an error.
	id, ok := m.Map(0.5, 1.5)
	require.False(t, ok)
	require.Empty(t, id)

	_, ok = m.Map(40.0, -75.0)
	require.False(t, ok)
}

func TestPolygonMapper_InvalidInput(t *testing.T) {
	_, err := NewPolygonMapper("bad", []byte(`{"not": "geojson"`))
	require.Error(t, err)

	_, err = NewPolygonMapper("empty", []byte(`{"type":"FeatureCollection","features":[]}`))
	require.Error(t, err)
}

func TestNewMapper_UnknownKind(t *testing.T) {
	_, err := NewMapper(SchemeSpec{Name: "x", Kind: "voronoi"})
	require.Error(t, err)
}

func TestNewMapper_Hex(t *testing.T) {
	m, err := NewMapper(SchemeSpec{Name: "h3-9", Kind: KindHex, Resolution: 9})
	require.NoError(t, err)

	_, ok := m.Map(38.9, -77.0)
	require.True(t, ok)
}
