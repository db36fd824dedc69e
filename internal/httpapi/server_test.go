package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eprofos/backoffice/internal/crm"
	"github.com/eprofos/backoffice/internal/notify"
)

func newTestAPI(t *testing.T) (*Server, crm.Store) {
	t.Helper()
	st, err := crm.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewServer(st, notify.Nop{}), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router([]string{"*"}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContactTouchpoint_CreatesProspect(t *testing.T) {
	api, st := newTestAPI(t)
	router := api.Router([]string{"*"})

	rec := doJSON(t, router, http.MethodPost, "/api/touchpoints/contact", map[string]any{
		"type":       "quote",
		"first_name": "Jean",
		"last_name":  "Moulin",
		"email":      "jean@example.com",
		"subject":    "Devis formation",
		"message":    "Pour 5 personnes",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]string](t, rec)
	assert.NotEmpty(t, resp["touchpoint_id"])
	assert.NotEmpty(t, resp["prospect_id"])
	assert.Equal(t, "prospect", resp["status"])

	p, err := st.GetProspect(context.Background(), resp["prospect_id"])
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, crm.SourceQuoteRequest, p.Source)
}

func TestContactTouchpoint_InvalidPayload(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router([]string{"*"})

	// Missing subject and malformed email.
	rec := doJSON(t, router, http.MethodPost, "/api/touchpoints/contact", map[string]any{
		"type":  "quote",
		"email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactTouchpoint_BadJSON(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router([]string{"*"})

	req := httptest.NewRequest(http.MethodPost, "/api/touchpoints/contact",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationTouchpoint_UnknownFormation(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router([]string{"*"})

	rec := doJSON(t, router, http.MethodPost, "/api/touchpoints/registration", map[string]any{
		"first_name":   "Paul",
		"last_name":    "Valéry",
		"email":        "paul@example.com",
		"formation_id": "ghost",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegistrationTouchpoint_Qualifies(t *testing.T) {
	api, st := newTestAPI(t)
	router := api.Router([]string{"*"})
	ctx := context.Background()

	f := &crm.Formation{Title: "Sécurité incendie"}
	require.NoError(t, st.CreateFormation(ctx, f))

	rec := doJSON(t, router, http.MethodPost, "/api/touchpoints/registration", map[string]any{
		"first_name":   "Paul",
		"last_name":    "Valéry",
		"email":        "paul@example.com",
		"formation_id": f.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "qualified", resp["status"])
}

func TestNeedsAnalysisTouchpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router([]string{"*"})

	rec := doJSON(t, router, http.MethodPost, "/api/touchpoints/needs-analysis", map[string]any{
		"recipient_name":  "Marie Curie",
		"recipient_email": "marie@example.com",
		"company_name":    "Institut",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "qualified", resp["status"])
}

func TestGetProspect_NotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router([]string{"*"}), http.MethodGet, "/api/prospects/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProspect_Detail(t *testing.T) {
	api, st := newTestAPI(t)
	router := api.Router([]string{"*"})
	ctx := context.Background()

	// Intake one touchpoint, then read the detail view back.
	rec := doJSON(t, router, http.MethodPost, "/api/touchpoints/contact", map[string]any{
		"type":    "quote",
		"email":   "jean@example.com",
		"subject": "Devis",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]string](t, rec)

	f := &crm.Formation{Title: "Anglais professionnel"}
	require.NoError(t, st.CreateFormation(ctx, f))
	require.NoError(t, st.AddFormationInterest(ctx, created["prospect_id"], f.ID))

	rec = doJSON(t, router, http.MethodGet, "/api/prospects/"+created["prospect_id"], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[map[string]any](t, rec)
	assert.Equal(t, "jean@example.com", detail["email"])
	assert.Contains(t, detail["description"], "quote_request")
	interests, ok := detail["interested_formations"].([]any)
	require.True(t, ok)
	assert.Len(t, interests, 1)
}

func TestListProspects(t *testing.T) {
	api, st := newTestAPI(t)
	router := api.Router([]string{"*"})
	ctx := context.Background()

	rec := doJSON(t, router, http.MethodGet, "/api/prospects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[map[string]any](t, rec)
	assert.Empty(t, empty["prospects"])

	require.NoError(t, st.CreateProspect(ctx, &crm.Prospect{
		Email: "a@example.com", Status: crm.StatusLead,
		Priority: crm.PriorityMedium, Source: crm.SourceWebsite,
	}))

	rec = doJSON(t, router, http.MethodGet, "/api/prospects?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[map[string]any](t, rec)
	assert.Len(t, page["prospects"], 1)
}

func TestConsolidateEndpoint(t *testing.T) {
	api, st := newTestAPI(t)
	router := api.Router([]string{"*"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, st.CreateProspect(ctx, &crm.Prospect{
			Email: "dup@example.com", Status: crm.StatusLead,
			Priority: crm.PriorityMedium, Source: crm.SourceWebsite,
		}))
	}

	rec := doJSON(t, router, http.MethodPost, "/api/consolidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[crm.Report](t, rec)
	assert.Equal(t, 1, report.Merged)
	assert.Empty(t, report.Failed)
}
