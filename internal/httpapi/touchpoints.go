package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/eprofos/backoffice/internal/crm"
)

// touchpointResponse is returned by every intake endpoint.
type touchpointResponse struct {
	TouchpointID string     `json:"touchpoint_id"`
	ProspectID   string     `json:"prospect_id"`
	Status       crm.Status `json:"status"`
}

type contactPayload struct {
	Type      string `json:"type" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	Subject   string `json:"subject" validate:"required"`
	Message   string `json:"message"`
	ServiceID string `json:"service_id"`
}

func (s *Server) handleContactTouchpoint(w http.ResponseWriter, r *http.Request) {
	var in contactPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		badRequest(w, err.Error())
		return
	}

	cr := &crm.ContactRequest{
		Type:      in.Type,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Company:   in.Company,
		Subject:   in.Subject,
		Message:   in.Message,
		ServiceID: in.ServiceID,
	}
	if err := s.store.CreateContactRequest(r.Context(), cr); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.merger.MergeContactRequest(r.Context(), cr.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().Info("httpapi: contact request processed",
		zap.String("touchpoint_id", cr.ID),
		zap.String("prospect_id", p.ID),
	)
	writeJSON(w, http.StatusCreated, touchpointResponse{
		TouchpointID: cr.ID,
		ProspectID:   p.ID,
		Status:       p.Status,
	})
}

type registrationPayload struct {
	FirstName           string `json:"first_name" validate:"required"`
	LastName            string `json:"last_name" validate:"required"`
	Email               string `json:"email" validate:"required,email"`
	Phone               string `json:"phone"`
	Company             string `json:"company"`
	Position            string `json:"position"`
	SpecialRequirements string `json:"special_requirements"`
	FormationID         string `json:"formation_id" validate:"required"`
}

func (s *Server) handleRegistrationTouchpoint(w http.ResponseWriter, r *http.Request) {
	var in registrationPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		badRequest(w, err.Error())
		return
	}

	sr := &crm.SessionRegistration{
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Email:               in.Email,
		Phone:               in.Phone,
		Company:             in.Company,
		Position:            in.Position,
		SpecialRequirements: in.SpecialRequirements,
		FormationID:         in.FormationID,
	}
	if err := s.store.CreateSessionRegistration(r.Context(), sr); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.merger.MergeSessionRegistration(r.Context(), sr.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().Info("httpapi: session registration processed",
		zap.String("touchpoint_id", sr.ID),
		zap.String("prospect_id", p.ID),
	)
	writeJSON(w, http.StatusCreated, touchpointResponse{
		TouchpointID: sr.ID,
		ProspectID:   p.ID,
		Status:       p.Status,
	})
}

type needsAnalysisPayload struct {
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email" validate:"required,email"`
	CompanyName    string `json:"company_name"`
	AdminNotes     string `json:"admin_notes"`
	FormationID    string `json:"formation_id"`
}

func (s *Server) handleNeedsAnalysisTouchpoint(w http.ResponseWriter, r *http.Request) {
	var in needsAnalysisPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		badRequest(w, err.Error())
		return
	}

	na := &crm.NeedsAnalysisRequest{
		RecipientName:  in.RecipientName,
		RecipientEmail: in.RecipientEmail,
		CompanyName:    in.CompanyName,
		AdminNotes:     in.AdminNotes,
		FormationID:    in.FormationID,
	}
	if err := s.store.CreateNeedsAnalysisRequest(r.Context(), na); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.merger.MergeNeedsAnalysis(r.Context(), na.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().Info("httpapi: needs-analysis request processed",
		zap.String("touchpoint_id", na.ID),
		zap.String("prospect_id", p.ID),
	)
	writeJSON(w, http.StatusCreated, touchpointResponse{
		TouchpointID: na.ID,
		ProspectID:   p.ID,
		Status:       p.Status,
	})
}
