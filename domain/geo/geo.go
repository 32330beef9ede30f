// Package geo holds the geographical primitives shared by pins, regions and
// the photo search.
package geo

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap/zapcore"
)

var ErrInvalidCoordinate = errors.New("Not a valid coordinate")

// Coordinate is a position in decimal degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

// Validate checks that the coordinate is finite and within the WGS84 ranges
func (c Coordinate) Validate() error {
	if !isFinite(c.Lat) || !isFinite(c.Lon) {
		return ErrInvalidCoordinate
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("[%f;%f]", c.Lat, c.Lon)
}

func (c Coordinate) Point() Point {
	return Point{X: c.Lon, Y: c.Lat}
}

func (c Coordinate) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("lat", c.Lat)
	enc.AddFloat64("lon", c.Lon)
	return nil
}

// Span is the visible extent of a map viewport around its center
type Span struct {
	LatDelta float64 `json:"latDelta"`
	LonDelta float64 `json:"lonDelta"`
}

func (s Span) Validate() error {
	if !isFinite(s.LatDelta) || !isFinite(s.LonDelta) || s.LatDelta < 0 || s.LonDelta < 0 {
		return errors.New("Not a valid span")
	}
	return nil
}

// Bounds returns the rectangle covered by a viewport centered on c
func Bounds(c Coordinate, s Span) Rect {
	hw, hh := s.LonDelta/2, s.LatDelta/2
	return RectFrom(c.Lon-hw, c.Lat-hh, c.Lon+hw, c.Lat+hh)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
