// Package httpapi exposes the CRM core over HTTP: touchpoint intake
// endpoints for the public website forms and read endpoints for the
// back-office.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eprofos/backoffice/internal/crm"
)

// Server bundles the handlers and their dependencies.
type Server struct {
	store        crm.Store
	merger       *crm.Merger
	consolidator *crm.Consolidator
	validate     *validator.Validate
}

// NewServer creates an API server on top of the given store.
func NewServer(store crm.Store, notifier crm.Notifier) *Server {
	return &Server{
		store:        store,
		merger:       crm.NewMerger(store, notifier),
		consolidator: crm.NewConsolidator(store),
		validate:     validator.New(),
	}
}

// Router builds the chi router. allowedOrigins feeds the CORS policy
// for the website forms.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/touchpoints/contact", s.handleContactTouchpoint)
		r.Post("/touchpoints/registration", s.handleRegistrationTouchpoint)
		r.Post("/touchpoints/needs-analysis", s.handleNeedsAnalysisTouchpoint)

		r.Get("/prospects", s.handleListProspects)
		r.Get("/prospects/{id}", s.handleGetProspect)

		r.Post("/consolidate", s.handleConsolidate)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("httpapi: encode response", zap.Error(err))
	}
}

// writeError maps core errors onto HTTP status codes: caller mistakes
// are 4xx, everything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case crm.IsInvalidIdentity(err):
		status = http.StatusBadRequest
	case crm.IsUnresolvableReference(err):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("httpapi: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}
