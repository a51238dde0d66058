package domain

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// GeometryType is the interchange tag of a geometry.
type GeometryType string

// Supported geometry types.
const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
)

// Geometry is a Point, a LineString or a Polygon reduced to its exterior
// ring. Coordinates are (lon, lat). Interior rings are never kept.
type Geometry struct {
	g orb.Geometry
}

// NewPoint creates a point geometry.
func NewPoint(lon, lat float64) Geometry {
	return Geometry{g: orb.Point{lon, lat}}
}

// NewLineString creates a line geometry. The slice is copied.
func NewLineString(points []orb.Point) Geometry {
	ls := make(orb.LineString, len(points))
	copy(ls, points)
	return Geometry{g: ls}
}

// NewPolygon creates a polygon geometry from its exterior ring. The slice is copied.
func NewPolygon(ring []orb.Point) Geometry {
	r := make(orb.Ring, len(ring))
	copy(r, ring)
	return Geometry{g: orb.Polygon{r}}
}

// GeometryFromOrb converts an orb geometry. Polygon holes are dropped.
func GeometryFromOrb(g orb.Geometry) (Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return NewPoint(v[0], v[1]), nil
	case orb.LineString:
		return NewLineString(v), nil
	case orb.Polygon:
		if len(v) == 0 {
			return Geometry{}, &DecodeError{Reason: DecodeMalformed, Kind: string(GeometryPolygon), Detail: "polygon has no rings"}
		}
		return NewPolygon(v[0]), nil
	case nil:
		return Geometry{}, &DecodeError{Reason: DecodeMalformed, Detail: "missing geometry"}
	default:
		return Geometry{}, &DecodeError{Reason: DecodeUnsupportedKind, Kind: g.GeoJSONType()}
	}
}

// Type returns the geometry tag.
func (g Geometry) Type() GeometryType {
	switch g.g.(type) {
	case orb.Point:
		return GeometryPoint
	case orb.LineString:
		return GeometryLineString
	case orb.Polygon:
		return GeometryPolygon
	}
	return ""
}

// IsZero reports whether the geometry is unset.
func (g Geometry) IsZero() bool {
	return g.g == nil
}

// Orb returns the underlying orb geometry.
func (g Geometry) Orb() orb.Geometry {
	return g.g
}

// Points returns the vertices in order. For a point this is one vertex, for
// a polygon the closed exterior ring.
func (g Geometry) Points() []orb.Point {
	switch v := g.g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.LineString:
		return []orb.Point(v)
	case orb.Polygon:
		return []orb.Point(v[0])
	}
	return nil
}

// Validate enforces vertex counts, ring closure and coordinate ranges.
func (g Geometry) Validate() error {
	kind := string(g.Type())
	switch v := g.g.(type) {
	case orb.Point:
	case orb.LineString:
		if len(v) < 2 {
			return &DecodeError{Reason: DecodeMalformed, Kind: kind, Detail: fmt.Sprintf("line needs at least 2 vertices, got %d", len(v))}
		}
	case orb.Polygon:
		ring := v[0]
		if len(ring) < 4 {
			return &DecodeError{Reason: DecodeMalformed, Kind: kind, Detail: fmt.Sprintf("ring needs at least 4 vertices, got %d", len(ring))}
		}
		if !ring.Closed() {
			return &DecodeError{Reason: DecodeMalformed, Kind: kind, Detail: "ring is not closed"}
		}
	default:
		return &DecodeError{Reason: DecodeMalformed, Detail: "missing geometry"}
	}
	for _, p := range g.Points() {
		if err := ValidateLonLat(p[0], p[1]); err != nil {
			return &DecodeError{Reason: DecodeOutOfRange, Kind: kind, Detail: err.Error()}
		}
	}
	return nil
}

// Bound returns the bounding box of the geometry.
func (g Geometry) Bound() BBox {
	if g.g == nil {
		return BBox{}
	}
	return BBoxFromBound(g.g.Bound())
}

// Equal reports whether both geometries have the same kind and vertices.
func (g Geometry) Equal(o Geometry) bool {
	if g.g == nil || o.g == nil {
		return g.g == nil && o.g == nil
	}
	return orb.Equal(g.g, o.g)
}

// LatLngs returns the vertices swapped to (lat, lon) order, which is what
// map renderers consume.
func (g Geometry) LatLngs() [][2]float64 {
	pts := g.Points()
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p[1], p[0]}
	}
	return out
}

// Intersects reports whether the geometry shares at least one point with the
// box, boundary included.
func (g Geometry) Intersects(b BBox) bool {
	if g.g == nil || !g.Bound().Intersects(b) {
		return false
	}
	switch v := g.g.(type) {
	case orb.Point:
		return b.Contains(v[0], v[1])
	case orb.LineString:
		return pathIntersects(v, b)
	case orb.Polygon:
		if pathIntersects(v[0], b) {
			return true
		}
		// box entirely inside the ring
		return planar.RingContains(v[0], orb.Point{b.MinLon, b.MinLat})
	}
	return false
}

func pathIntersects(pts []orb.Point, b BBox) bool {
	if len(pts) == 1 {
		return b.Contains(pts[0][0], pts[0][1])
	}
	for i := 1; i < len(pts); i++ {
		if segmentIntersects(pts[i-1], pts[i], b) {
			return true
		}
	}
	return false
}

// segmentIntersects clips the segment a-b against the box (Liang-Barsky).
func segmentIntersects(a, c orb.Point, b BBox) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := c[0]-a[0], c[1]-a[1]
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}
	return clip(-dx, a[0]-b.MinLon) &&
		clip(dx, b.MaxLon-a[0]) &&
		clip(-dy, a[1]-b.MinLat) &&
		clip(dy, b.MaxLat-a[1])
}
