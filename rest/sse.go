package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Aanu1995/Virtual-Tourist/events"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type SSEHandler struct {
	events *events.Stream
}

func NewSSEHandler(stream *events.Stream) *SSEHandler {
	return &SSEHandler{
		events: stream,
	}
}

func (e *SSEHandler) InitRoutes(router *mux.Router) {
	router.HandleFunc("/eventstream", e.listen).Methods(http.MethodGet).Name("/eventstream")
}

// eventFilter selects events by name and subject, empty fields match anything
type eventFilter struct {
	name, subject string
}

func (f eventFilter) matches(e events.Event) bool {
	return (f.name == "" || f.name == e.Name) && (f.subject == "" || f.subject == e.Subject)
}

// listen streams album state changes and pin events until the client leaves.
// ?name=album&subject=<pin id> restricts the stream to a single album.
func (e *SSEHandler) listen(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Warn("HTTP Flusher not supported")
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	filter := eventFilter{name: r.URL.Query().Get("name"), subject: r.URL.Query().Get("subject")}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	e.events.Listen(r.Context(), func(event events.Event) {
		if !filter.matches(event) {
			return
		}
		data, err := json.Marshal(event)
		if err != nil {
			logger.Warn("Cannot encode event", zap.String("event", event.Name), zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data); err != nil {
			return
		}
		flusher.Flush()
	})
}
