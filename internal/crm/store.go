package crm

import "context"

// Store defines the persistence operations the CRM core needs. Both
// drivers (Postgres, SQLite) implement it. Lookup methods return
// (nil, nil) when no row matches; mutation methods on a missing row
// return an error.
type Store interface {
	// Prospects
	CreateProspect(ctx context.Context, p *Prospect) error
	UpdateProspect(ctx context.Context, p *Prospect) error
	GetProspect(ctx context.Context, id string) (*Prospect, error)
	FindProspectByEmail(ctx context.Context, email string) (*Prospect, error)
	DeleteProspect(ctx context.Context, id string) error
	ListProspects(ctx context.Context, limit, offset int) ([]Prospect, error)
	CountProspectsByStatus(ctx context.Context) (map[Status]int, error)

	// Duplicate detection
	DuplicateEmails(ctx context.Context) ([]EmailCount, error)
	ListProspectsByEmail(ctx context.Context, email string) ([]Prospect, error)

	// Event history
	AppendEvent(ctx context.Context, ev *ProspectEvent) error
	ListEvents(ctx context.Context, prospectID string) ([]ProspectEvent, error)
	RepointEvents(ctx context.Context, sourceID, targetID string) error

	// Interests (set semantics, idempotent adds)
	AddFormationInterest(ctx context.Context, prospectID, formationID string) error
	AddServiceInterest(ctx context.Context, prospectID, serviceID string) error
	ListFormationInterests(ctx context.Context, prospectID string) ([]Formation, error)
	ListServiceInterests(ctx context.Context, prospectID string) ([]Service, error)
	RepointInterests(ctx context.Context, sourceID, targetID string) error

	// Catalog
	CreateFormation(ctx context.Context, f *Formation) error
	GetFormation(ctx context.Context, id string) (*Formation, error)
	CreateService(ctx context.Context, sv *Service) error
	GetService(ctx context.Context, id string) (*Service, error)

	// Touchpoints
	CreateContactRequest(ctx context.Context, cr *ContactRequest) error
	GetContactRequest(ctx context.Context, id string) (*ContactRequest, error)
	LinkContactRequest(ctx context.Context, id, prospectID string) error
	ListContactRequestsByProspect(ctx context.Context, prospectID string) ([]ContactRequest, error)

	CreateSessionRegistration(ctx context.Context, sr *SessionRegistration) error
	GetSessionRegistration(ctx context.Context, id string) (*SessionRegistration, error)
	LinkSessionRegistration(ctx context.Context, id, prospectID string) error
	ListSessionRegistrationsByProspect(ctx context.Context, prospectID string) ([]SessionRegistration, error)

	CreateNeedsAnalysisRequest(ctx context.Context, na *NeedsAnalysisRequest) error
	GetNeedsAnalysisRequest(ctx context.Context, id string) (*NeedsAnalysisRequest, error)
	LinkNeedsAnalysisRequest(ctx context.Context, id, prospectID string) error
	ListNeedsAnalysisRequestsByProspect(ctx context.Context, prospectID string) ([]NeedsAnalysisRequest, error)

	// RepointTouchpoints moves every touchpoint back-reference from
	// sourceID to targetID across all three touchpoint tables.
	RepointTouchpoints(ctx context.Context, sourceID, targetID string) error

	// InTx runs fn against a transactional view of the store, committing
	// on nil and rolling back on error. Calling InTx on an already
	// transactional store joins the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Notifier is invoked after a touchpoint merge commits. Implementations
// live outside this package; failures are logged, never propagated into
// the merge result.
type Notifier interface {
	Notify(ctx context.Context, p *Prospect, event string) error
}
