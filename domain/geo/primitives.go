package geo

import "math"

// Point is a position on the plane of an equirectangular map: X is the
// longitude and Y the latitude
type Point struct {
	X, Y float64
}

// Rect is an axis aligned area of the map, Min is its south west corner
type Rect struct {
	Min, Max Point
}

var WorldBounds = RectFrom(-180, -90, 180, 90)

// RectFrom orders the given corners so that Min <= Max on both axes
func RectFrom(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Min: Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

func (r Rect) W() float64 { return r.Max.X - r.Min.X }
func (r Rect) H() float64 { return r.Max.Y - r.Min.Y }

// Contains is true if p lies in r, borders included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}
