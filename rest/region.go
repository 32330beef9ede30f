package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/region"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RegionStore loads and saves the last viewed map region
type RegionStore interface {
	Load(ctx context.Context) (region.Region, bool, error)
	Save(ctx context.Context, r region.Region) error
}

type RegionHandler struct {
	regions RegionStore
}

func NewRegionHandler(regions RegionStore) *RegionHandler {
	return &RegionHandler{regions: regions}
}

func (h *RegionHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/region", h.getRegion).Methods(http.MethodGet)
	r.HandleFunc("/region", h.putRegion).Methods(http.MethodPut)
}

func (h *RegionHandler) getRegion(w http.ResponseWriter, r *http.Request) {
	reg, found, err := h.regions.Load(r.Context())
	if err != nil {
		logging.From(r.Context()).Warn("Cannot load region", zap.Error(err))
		Respond(r).WithError(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, reg)
}

func (h *RegionHandler) putRegion(w http.ResponseWriter, r *http.Request) {
	var reg region.Region
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		Respond(r).WithError(w, invalidRequest{fmt.Errorf("bad region: %w", err)})
		return
	}
	if err := reg.Center.Validate(); err != nil {
		Respond(r).WithError(w, invalidRequest{err})
		return
	}
	if err := reg.Span.Validate(); err != nil {
		Respond(r).WithError(w, invalidRequest{err})
		return
	}
	if err := h.regions.Save(r.Context(), reg); err != nil {
		Respond(r).WithError(w, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, reg)
}
