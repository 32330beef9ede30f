// Package mapview renders the pins and the persisted region as an SVG map
package mapview

import (
	"fmt"
	"io"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	svg "github.com/ajstarks/svgo"
)

var (
	strokeGrid   = []string{`stroke="gray"`, `stroke-width="0.2"`, `fill="none"`}
	strokeRegion = []string{`stroke="blue"`, `stroke-width="0.2"`, `fill="blue"`, `fill-opacity="0.1"`}
	stylePin     = []string{`fill="red"`, `stroke="none"`}
)

// MapView draws geographic objects onto an SVG canvas. Longitudes grow to the
// right and latitudes upwards.
type MapView struct {
	canvas  *svg.SVG
	pinSize float64
}

func NewMapView(out io.Writer) *MapView {
	return &MapView{canvas: svg.New(out)}
}

func rectPath(bounds geo.Rect) string {
	return fmt.Sprintf("M %f %f l 0 %f l %f 0 l 0 %f Z", bounds.Min.X, bounds.Min.Y, bounds.H(), bounds.W(), -bounds.H())
}

func pinPath(c geo.Coordinate, size float64) string {
	p := c.Point()
	return fmt.Sprintf("M %f %f l %f %f l %f 0 Z", p.X, p.Y, -size/2, size, size)
}

// Begin starts the document showing bounds
func (v *MapView) Begin(bounds geo.Rect) {
	v.pinSize = bounds.H() / 40
	// y is flipped below, the view box is in flipped coordinates
	v.canvas.Startpercent(100, 100, fmt.Sprintf(`viewBox="%f %f %f %f"`, bounds.Min.X, -bounds.Max.Y, bounds.W(), bounds.H()))
	v.canvas.Gtransform("scale(1,-1)")
	v.canvas.Path("M 0 -90 l 0 180", strokeGrid...)
	v.canvas.Path("M -180 0 l 360 0", strokeGrid...)
	v.canvas.Path(rectPath(geo.WorldBounds), strokeGrid...)
}

// Region outlines the visible map region
func (v *MapView) Region(bounds geo.Rect) {
	v.canvas.Group(`class="region"`)
	v.canvas.Path(rectPath(bounds), strokeRegion...)
	v.canvas.Gend()
}

// Pin marks a pin with a small triangle pointing at its coordinate
func (v *MapView) Pin(pin *album.Pin) {
	v.canvas.Group(`class="pin"`, fmt.Sprintf(`id="%s"`, pin.ID))
	v.canvas.Path(pinPath(pin.Coordinate, v.pinSize), stylePin...)
	v.canvas.Gend()
}

func (v *MapView) End() {
	v.canvas.Gend()
	v.canvas.End()
}

// Render draws the pins lying within bounds, and region if not nil
func Render(out io.Writer, bounds geo.Rect, region *geo.Rect, pins []*album.Pin) int {
	v := NewMapView(out)
	v.Begin(bounds)
	if region != nil {
		v.Region(*region)
	}
	var drawn int
	for _, p := range pins {
		if bounds.Contains(p.Coordinate.Point()) {
			v.Pin(p)
			drawn++
		}
	}
	v.End()
	return drawn
}
