// Package geo resolves geographic coordinates to administrative divisions.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a geographic coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether both coordinates are finite numbers.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Ring is a polygon outer ring. The ring is implicitly closed: the last
// vertex connects back to the first.
type Ring []Point

// ParseBoundary decodes a division boundary stored as a JSON array of
// [lat, lng] vertex pairs.
func ParseBoundary(s string) (Ring, error) {
	if s == "" {
		return nil, fmt.Errorf("geo: empty boundary")
	}
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("geo: parse boundary: %w", err)
	}
	ring := make(Ring, len(pairs))
	for i, p := range pairs {
		ring[i] = Point{Lat: p[0], Lng: p[1]}
	}
	return ring, nil
}

// Degenerate reports whether the ring has too few vertices to enclose area.
func (r Ring) Degenerate() bool {
	return len(r) < 3
}

// Contains tests point containment with the crossing-number (ray casting)
// algorithm. The half-open rule `(yi > y) != (yj > y)` means horizontal
// edges contribute no crossing and a shared vertex is counted exactly once,
// so results on division borders are deterministic.
func (r Ring) Contains(p Point) bool {
	if r.Degenerate() {
		return false
	}
	inside := false
	j := len(r) - 1
	for i := range r {
		yi, xi := r[i].Lat, r[i].Lng
		yj, xj := r[j].Lat, r[j].Lng
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lng < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Bounds is an axis-aligned bounding rectangle in geographic coordinates.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the point lies inside the rectangle, borders
// included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
