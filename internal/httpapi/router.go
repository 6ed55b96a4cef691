// Package httpapi exposes the scanner's status and trigger hooks over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"AlertWatch/internal/model"
	"AlertWatch/internal/scanner"
)

// Scanner is the set of orchestrator hooks the HTTP surface calls.
type Scanner interface {
	RunCycle(ctx context.Context) (model.CycleReport, error)
	SendMockAlert(ctx context.Context) error
	Stats() model.ScanStats
}

type handler struct {
	scanner Scanner
	banner  string
}

// NewRouter builds the route table. metrics may be nil.
func NewRouter(sc Scanner, metrics http.Handler, banner string) *mux.Router {
	h := &handler{scanner: sc, banner: banner}
	r := mux.NewRouter()

	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/scan", h.scan).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/manual", h.scan).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/mock-alert", h.mockAlert).Methods(http.MethodGet, http.MethodPost)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	r.Use(logRequests)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Debug("http request")
		next.ServeHTTP(w, r)
	})
}

type message struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

func (h *handler) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.banner + "\n"))
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, message{Status: "ok"})
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.scanner.Stats())
}

func (h *handler) scan(w http.ResponseWriter, r *http.Request) {
	rep, err := h.scanner.RunCycle(r.Context())
	switch {
	case errors.Is(err, scanner.ErrCycleInProgress):
		writeJSON(w, http.StatusConflict, message{Status: "busy", Message: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, message{Status: "error", Message: err.Error()})
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (h *handler) mockAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.scanner.SendMockAlert(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, message{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, message{Status: "success", Message: "Mock alert sent"})
}
