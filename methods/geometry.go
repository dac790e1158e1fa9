package methods

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// CircleBuffer 以 center 为圆心、radius 米为半径的近似圆，steps 为边数
func CircleBuffer(center orb.Point, radius float64, steps int) orb.Polygon {
	if steps < 3 {
		steps = 3
	}
	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		bearing := 360.0 * float64(i) / float64(steps)
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radius))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Intersects 判断几何是否与多边形相交（含接触）
func Intersects(g orb.Geometry, poly orb.Polygon) bool {
	if g == nil || len(poly) == 0 {
		return false
	}
	if !g.Bound().Intersects(poly.Bound()) {
		return false
	}
	switch t := g.(type) {
	case orb.Point:
		return planar.PolygonContains(poly, t)
	case orb.MultiPoint:
		for _, p := range t {
			if planar.PolygonContains(poly, p) {
				return true
			}
		}
	case orb.LineString:
		return lineIntersectsPolygon(t, poly)
	case orb.MultiLineString:
		for _, ls := range t {
			if lineIntersectsPolygon(ls, poly) {
				return true
			}
		}
	case orb.Ring:
		return lineIntersectsPolygon(orb.LineString(t), poly)
	case orb.Polygon:
		return polygonsIntersect(t, poly)
	case orb.MultiPolygon:
		for _, p := range t {
			if polygonsIntersect(p, poly) {
				return true
			}
		}
	case orb.Collection:
		for _, sub := range t {
			if Intersects(sub, poly) {
				return true
			}
		}
	case orb.Bound:
		return polygonsIntersect(t.ToPolygon(), poly)
	}
	return false
}

func lineIntersectsPolygon(ls orb.LineString, poly orb.Polygon) bool {
	for _, p := range ls {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	for i := 1; i < len(ls); i++ {
		for _, ring := range poly {
			for j := 1; j < len(ring); j++ {
				if segmentsIntersect(ls[i-1], ls[i], ring[j-1], ring[j]) {
					return true
				}
			}
		}
	}
	return false
}

func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if lineIntersectsPolygon(orb.LineString(a[0]), b) {
		return true
	}
	// b 完全落在 a 内部
	for _, p := range b[0] {
		if planar.PolygonContains(a, p) {
			return true
		}
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(p3, p4, p1):
		return true
	case d2 == 0 && onSegment(p3, p4, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, p3):
		return true
	case d4 == 0 && onSegment(p1, p2, p4):
		return true
	}
	return false
}

// ParseBounds 解析 "minX,minY,maxX,maxY"
func ParseBounds(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bounds must have 4 values, got %d", len(parts))
	}
	v := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bounds value %q: %w", p, err)
		}
		v[i] = f
	}
	return BoundsFromSlice(v)
}

// BoundsFromSlice [minX,minY,maxX,maxY] 转为范围
func BoundsFromSlice(v []float64) (orb.Bound, error) {
	if len(v) != 4 {
		return orb.Bound{}, fmt.Errorf("bounds must have 4 values, got %d", len(v))
	}
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, fmt.Errorf("bounds value %v is not finite", f)
		}
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bounds min exceeds max")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// FormatBounds 以逗号连接 minX,minY,maxX,maxY
func FormatBounds(b orb.Bound) string {
	vals := []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// BoundsSlice [minX,minY,maxX,maxY]
func BoundsSlice(b orb.Bound) []float64 {
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}
