package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type Responder interface {
	WithJSON(http.ResponseWriter, int, interface{})
	WithError(http.ResponseWriter, error)
	WithErrorPayload(http.ResponseWriter, error, interface{})
}

type encoderFunc func(*json.Encoder) *json.Encoder

type responder struct {
	encoderOptions encoderFunc
}

var (
	pretty  Responder
	compact Responder
)

func init() {
	pretty = responder{func(encoder *json.Encoder) *json.Encoder {
		encoder.SetIndent("", "  ")
		return encoder
	}}
	compact = responder{func(e *json.Encoder) *json.Encoder { return e }}
}

func Respond(r *http.Request) Responder {
	if r.URL.Query().Get("pretty") == "true" {
		return pretty
	}
	return compact
}

type errorPayload struct {
	Error string      `json:"error"`
	Kind  Kind        `json:"kind"`
	Data  interface{} `json:"data,omitempty"`
}

// WithError responds with the status matching the kind of err
func (r responder) WithError(w http.ResponseWriter, err error) {
	r.WithErrorPayload(w, err, nil)
}

// WithErrorPayload is WithError with whatever is still servable despite err
func (r responder) WithErrorPayload(w http.ResponseWriter, err error, data interface{}) {
	status, kind := classify(err)
	r.WithJSON(w, status, errorPayload{Error: err.Error(), Kind: kind, Data: data})
}

func (r responder) WithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := r.encoderOptions(json.NewEncoder(w))
	encoder.Encode(payload)
}

func respondWithBinary(w http.ResponseWriter, mime string, size int64, data io.Reader) {
	w.Header().Set("Content-Type", mime)
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, data)
}
