package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/media"
	"github.com/Aanu1995/Virtual-Tourist/rest/views"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Albums is what the album handler needs from the album manager
type Albums interface {
	CreatePin(ctx context.Context, c geo.Coordinate) (*album.Pin, error)
	ListPins(ctx context.Context) ([]*album.Pin, error)
	GetPin(ctx context.Context, id album.PinID) (*album.Pin, error)
	FindPin(ctx context.Context, c geo.Coordinate) (*album.Pin, error)
	DeletePin(ctx context.Context, id album.PinID) error

	View(ctx context.Context, pin album.PinID) (*album.Album, error)
	Refresh(ctx context.Context, pin album.PinID) (*album.Album, error)
	DeletePhoto(ctx context.Context, pin album.PinID, photo album.PhotoID) (*album.Album, error)
	Image(ctx context.Context, pin album.PinID, photo album.PhotoID) (*album.ImageData, error)
}

type AlbumHandler struct {
	albums Albums
}

func NewAlbumHandler(albums Albums) *AlbumHandler {
	return &AlbumHandler{albums: albums}
}

func (h *AlbumHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/pins", h.createPin).Methods(http.MethodPost)
	r.HandleFunc("/pins", h.listPins).Methods(http.MethodGet)
	r.HandleFunc("/pins/lookup", h.findPin).Methods(http.MethodGet)
	r.HandleFunc("/pins/{id}", h.getPin).Methods(http.MethodGet)
	r.HandleFunc("/pins/{id}", h.deletePin).Methods(http.MethodDelete)
	r.HandleFunc("/pins/{id}/album", h.viewAlbum).Methods(http.MethodGet)
	r.HandleFunc("/pins/{id}/album/refresh", h.refreshAlbum).Methods(http.MethodPost)
	r.HandleFunc("/pins/{id}/album/photos/{photo}", h.deletePhoto).Methods(http.MethodDelete)
	r.HandleFunc("/pins/{id}/album/photos/{photo}/image", h.getImage).Methods(http.MethodGet)
	r.HandleFunc("/pins/{id}/album/photos/{photo}/thumb", h.getThumb).Methods(http.MethodGet)
}

func pinID(r *http.Request) album.PinID {
	return album.PinID(mux.Vars(r)["id"])
}

func photoID(r *http.Request) album.PhotoID {
	return album.PhotoID(mux.Vars(r)["photo"])
}

func (h *AlbumHandler) createPin(w http.ResponseWriter, r *http.Request) {
	var c geo.Coordinate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		Respond(r).WithError(w, invalidRequest{fmt.Errorf("bad coordinate: %w", err)})
		return
	}
	pin, err := h.albums.CreatePin(r.Context(), c)
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	logging.From(r.Context()).Info("Pin created", zap.Stringer("pin", pin.ID), zap.Object("coord", pin.Coordinate))
	w.Header().Set("Location", fmt.Sprintf("/pins/%s", pin.ID))
	Respond(r).WithJSON(w, http.StatusCreated, views.PinFrom(pin))
}

func (h *AlbumHandler) listPins(w http.ResponseWriter, r *http.Request) {
	pins, err := h.albums.ListPins(r.Context())
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, views.PinsFrom(pins))
}

func (h *AlbumHandler) findPin(w http.ResponseWriter, r *http.Request) {
	c, err := coordinateFrom(r)
	if err != nil {
		Respond(r).WithError(w, invalidRequest{err})
		return
	}
	pin, err := h.albums.FindPin(r.Context(), c)
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, views.PinFrom(pin))
}

func coordinateFrom(r *http.Request) (geo.Coordinate, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("bad lat: %w", err)
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("bad lon: %w", err)
	}
	return geo.NewCoordinate(lat, lon), nil
}

func (h *AlbumHandler) getPin(w http.ResponseWriter, r *http.Request) {
	pin, err := h.albums.GetPin(r.Context(), pinID(r))
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, views.PinFrom(pin))
}

func (h *AlbumHandler) deletePin(w http.ResponseWriter, r *http.Request) {
	if err := h.albums.DeletePin(r.Context(), pinID(r)); err != nil {
		Respond(r).WithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AlbumHandler) viewAlbum(w http.ResponseWriter, r *http.Request) {
	a, err := h.albums.View(r.Context(), pinID(r))
	h.respondWithAlbum(w, r, a, err)
}

func (h *AlbumHandler) refreshAlbum(w http.ResponseWriter, r *http.Request) {
	a, err := h.albums.Refresh(r.Context(), pinID(r))
	h.respondWithAlbum(w, r, a, err)
}

func (h *AlbumHandler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	a, err := h.albums.DeletePhoto(r.Context(), pinID(r), photoID(r))
	h.respondWithAlbum(w, r, a, err)
}

// respondWithAlbum sends the album still servable after a failed fetch along
// with the error
func (h *AlbumHandler) respondWithAlbum(w http.ResponseWriter, r *http.Request, a *album.Album, err error) {
	if err != nil {
		logging.From(r.Context()).Warn("Album request failed", zap.Stringer("pin", pinID(r)), zap.Error(err))
		if a != nil {
			Respond(r).WithErrorPayload(w, err, views.AlbumFrom(a))
		} else {
			Respond(r).WithError(w, err)
		}
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, views.AlbumFrom(a))
}

func (h *AlbumHandler) getImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.albums.Image(r.Context(), pinID(r), photoID(r))
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "max-age=31536000, immutable")
	respondWithBinary(w, img.Mime, int64(len(img.Bytes)), bytes.NewReader(img.Bytes))
}

func (h *AlbumHandler) getThumb(w http.ResponseWriter, r *http.Request) {
	sizeName := r.URL.Query().Get("size")
	if sizeName == "" {
		sizeName = media.Small.Name
	}
	size, found := media.ThumbSizes[sizeName]
	if !found {
		Respond(r).WithError(w, invalidRequest{fmt.Errorf("unknown thumb size %q", sizeName)})
		return
	}
	img, err := h.albums.Image(r.Context(), pinID(r), photoID(r))
	if err != nil {
		Respond(r).WithError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := media.Thumbnail(img.Bytes, size, &buf); err != nil {
		logging.From(r.Context()).Warn("Thumbnail failed", zap.Stringer("photo", photoID(r)), zap.Error(err))
		Respond(r).WithError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "max-age=31536000, immutable")
	respondWithBinary(w, "image/jpeg", int64(buf.Len()), &buf)
}
