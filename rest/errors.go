package rest

import (
	"errors"
	"net/http"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
	"github.com/Aanu1995/Virtual-Tourist/region"
)

// Kind tells clients what went wrong without parsing error messages
type Kind string

const (
	KindNetwork     = Kind("network")
	KindDecode      = Kind("decode")
	KindNotFound    = Kind("notfound")
	KindBusy        = Kind("busy")
	KindExists      = Kind("exists")
	KindStore       = Kind("store")
	KindInvalid     = Kind("invalid")
	KindUnavailable = Kind("unavailable")
	KindInternal    = Kind("internal")
)

// invalidRequest marks errors caused by a malformed request
type invalidRequest struct {
	err error
}

func (e invalidRequest) Error() string {
	return e.err.Error()
}

func (e invalidRequest) Unwrap() error {
	return e.err
}

func classify(err error) (int, Kind) {
	var (
		networkErr *photoservice.NetworkError
		decodeErr  *photoservice.DecodeError
		regionErr  *region.DecodeError
		exists     album.PinAlreadyExists
		storeErr   *album.StoreError
		invalid    invalidRequest
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, KindInvalid
	case errors.As(err, &networkErr):
		return http.StatusBadGateway, KindNetwork
	case errors.As(err, &decodeErr):
		return http.StatusBadGateway, KindDecode
	case errors.As(err, &regionErr):
		return http.StatusInternalServerError, KindDecode
	case album.IsNotFound(err):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, album.ErrBusy):
		return http.StatusConflict, KindBusy
	case errors.As(err, &exists):
		return http.StatusConflict, KindExists
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError, KindStore
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest, KindInvalid
	case errors.Is(err, album.ErrNotRunning):
		return http.StatusServiceUnavailable, KindUnavailable
	default:
		return http.StatusInternalServerError, KindInternal
	}
}
