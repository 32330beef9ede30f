package rest

import (
	"bytes"
	"context"
	"net/http"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/mapview"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PinLister lists all stored pins
type PinLister interface {
	ListPins(ctx context.Context) ([]*album.Pin, error)
}

type MapHandler struct {
	pins    PinLister
	regions RegionStore
}

func NewMapHandler(pins PinLister, regions RegionStore) *MapHandler {
	return &MapHandler{pins: pins, regions: regions}
}

func (h *MapHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/map.svg", h.getMap).Methods(http.MethodGet)
}

// getMap draws the pins within the persisted region, or the whole world when
// no region was saved yet
func (h *MapHandler) getMap(w http.ResponseWriter, r *http.Request) {
	log := logging.From(r.Context())
	bounds := geo.WorldBounds
	var visible *geo.Rect
	reg, found, err := h.regions.Load(r.Context())
	if err != nil {
		log.Warn("Cannot load region, drawing world map", zap.Error(err))
	} else if found {
		rect := geo.Bounds(reg.Center, reg.Span)
		bounds, visible = rect, &rect
	}
	pins, err := h.pins.ListPins(r.Context())
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	var buf bytes.Buffer
	drawn := mapview.Render(&buf, bounds, visible, pins)
	log.Debug("Rendered map", zap.Int("pins", drawn), zap.Int("total", len(pins)))
	respondWithBinary(w, "image/svg+xml", int64(buf.Len()), &buf)
}
