package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eprofos/backoffice/internal/crm"
)

const defaultPageSize = 50

func (s *Server) handleListProspects(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	offset := queryInt(r, "offset", 0)

	prospects, err := s.store.ListProspects(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if prospects == nil {
		prospects = []crm.Prospect{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prospects": prospects,
		"limit":     limit,
		"offset":    offset,
	})
}

// prospectDetail is the full back-office view of one prospect.
type prospectDetail struct {
	crm.Prospect
	Description string          `json:"description"`
	Formations  []crm.Formation `json:"interested_formations"`
	Services    []crm.Service   `json:"interested_services"`
}

func (s *Server) handleGetProspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.store.GetProspect(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		notFound(w)
		return
	}

	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	formations, err := s.store.ListFormationInterests(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	services, err := s.store.ListServiceInterests(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if formations == nil {
		formations = []crm.Formation{}
	}
	if services == nil {
		services = []crm.Service{}
	}
	writeJSON(w, http.StatusOK, prospectDetail{
		Prospect:    *p,
		Description: crm.RenderDescription(events),
		Formations:  formations,
		Services:    services,
	})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.consolidator.ConsolidateAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
