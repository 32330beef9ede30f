package rest

import (
	"net/http"

	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/gorilla/mux"
)

// LogsHandler serves the recent log lines kept in memory, newest first unless
// order=asc is given
type LogsHandler struct{}

func NewLogsHandler() LogsHandler {
	return LogsHandler{}
}

func (l LogsHandler) InitRoutes(r *mux.Router) {
	r.Handle("/logs", l).Methods(http.MethodGet)
}

func (l LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	logging.Dump(w, r.URL.Query().Get("order") != "asc")
}
