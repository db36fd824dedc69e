package crm

import (
	"strings"
	"time"
)

// Contact request types, as submitted by the website contact form.
const (
	ContactTypeQuote             = "quote"
	ContactTypeConsultation      = "consultation"
	ContactTypeInformation       = "information"
	ContactTypeQuickRegistration = "quick_registration"
)

// ContactRequest is a website contact-form submission.
type ContactRequest struct {
	ID        string `json:"id" db:"id"`
	Type      string `json:"type" db:"type"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone,omitempty" db:"phone"`
	Company   string `json:"company,omitempty" db:"company"`
	Subject   string `json:"subject" db:"subject"`
	Message   string `json:"message" db:"message"`
	ServiceID string `json:"service_id,omitempty" db:"service_id"`

	ProspectID string    `json:"prospect_id,omitempty" db:"prospect_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SessionRegistration is a registration for a formation session.
type SessionRegistration struct {
	ID                  string `json:"id" db:"id"`
	FirstName           string `json:"first_name" db:"first_name"`
	LastName            string `json:"last_name" db:"last_name"`
	Email               string `json:"email" db:"email"`
	Phone               string `json:"phone,omitempty" db:"phone"`
	Company             string `json:"company,omitempty" db:"company"`
	Position            string `json:"position,omitempty" db:"position"`
	SpecialRequirements string `json:"special_requirements,omitempty" db:"special_requirements"`
	FormationID         string `json:"formation_id" db:"formation_id"`

	ProspectID string    `json:"prospect_id,omitempty" db:"prospect_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NeedsAnalysisRequest is a training needs-analysis submission. The
// recipient's name arrives as a single string and is split into first and
// last name during merging.
type NeedsAnalysisRequest struct {
	ID             string `json:"id" db:"id"`
	RecipientName  string `json:"recipient_name" db:"recipient_name"`
	RecipientEmail string `json:"recipient_email" db:"recipient_email"`
	CompanyName    string `json:"company_name,omitempty" db:"company_name"`
	AdminNotes     string `json:"admin_notes,omitempty" db:"admin_notes"`
	FormationID    string `json:"formation_id,omitempty" db:"formation_id"`

	ProspectID string    `json:"prospect_id,omitempty" db:"prospect_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SplitRecipientName splits a full name on whitespace: first token is the
// first name, the remaining tokens joined are the last name. Either part
// may come back empty.
func SplitRecipientName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
