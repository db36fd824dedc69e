// Package crm implements prospect identity resolution, touchpoint merging
// and duplicate consolidation for the training back-office.
package crm

import (
	"time"
)

// Status is a position on the CRM pipeline ladder. Transitions only ever
// move forward; nothing in this package demotes a prospect.
type Status string

// Ladder, in ascending order.
const (
	StatusLead        Status = "lead"
	StatusProspect    Status = "prospect"
	StatusQualified   Status = "qualified"
	StatusNegotiation Status = "negotiation"
	StatusCustomer    Status = "customer"
)

var statusRank = map[Status]int{
	StatusLead:        1,
	StatusProspect:    2,
	StatusQualified:   3,
	StatusNegotiation: 4,
	StatusCustomer:    5,
}

// Rank returns the ladder position of s, or 0 for an unknown status.
func (s Status) Rank() int {
	return statusRank[s]
}

// Before reports whether s is strictly lower on the ladder than o.
// Unknown statuses rank below every known one.
func (s Status) Before(o Status) bool {
	return statusRank[s] < statusRank[o]
}

// Priority is the follow-up priority assigned to a prospect.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Source labels. SourceWebsite is the generic default a new prospect gets;
// every touchpoint type carries a more specific label that may replace it
// but is itself never replaced by a less specific one.
const (
	SourceWebsite             = "website"
	SourceQuoteRequest        = "quote_request"
	SourceConsultationRequest = "consultation_request"
	SourceInformationRequest  = "information_request"
	SourceQuickRegistration   = "quick_registration"
	SourceContactForm         = "contact_form"
	SourceSessionRegistration = "session_registration"
	SourceNeedsAnalysis       = "needs_analysis"
)

// Prospect is the canonical CRM record for one real-world contact, keyed
// by email. Duplicates for the same email are a transient state corrected
// by the Consolidator, not a structural impossibility.
type Prospect struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Phone     string `json:"phone,omitempty" db:"phone"`
	Company   string `json:"company,omitempty" db:"company"`
	Position  string `json:"position,omitempty" db:"position"`

	Status   Status   `json:"status" db:"status"`
	Priority Priority `json:"priority" db:"priority"`
	Source   string   `json:"source" db:"source"`

	LastContactDate  *time.Time `json:"last_contact_date,omitempty" db:"last_contact_date"`
	NextFollowUpDate *time.Time `json:"next_follow_up_date,omitempty" db:"next_follow_up_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Formation is a catalog entry a prospect can be interested in.
type Formation struct {
	ID    string `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

// Service is a catalog entry for non-formation offerings.
type Service struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// EmailCount is one row of the duplicate-email grouping query.
type EmailCount struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}
