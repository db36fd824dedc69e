package crm

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Placeholder names used when a touchpoint carries no usable name hints.
// They match what the admin UI has always displayed for unnamed records.
const (
	PlaceholderFirstName = "Prénom"
	PlaceholderLastName  = "Nom"
)

// Resolver finds or creates the canonical prospect for an email address.
type Resolver struct {
	validate *validator.Validate
}

// NewResolver creates a prospect resolver.
func NewResolver() *Resolver {
	return &Resolver{validate: validator.New()}
}

// Resolve looks up the prospect for email, creating one when none exists.
// The new record is inserted through the given store, so inside InTx it
// stays staged until the caller's transaction commits. Lookups never
// mutate the returned record; merging is the caller's job. Returns
// whether the prospect was newly created.
//
// There is no unique constraint on email: two concurrent transactions
// resolving the same new address can both create a prospect, and the
// Consolidator later folds them together. Within one transaction repeated
// calls return the same record.
func (r *Resolver) Resolve(ctx context.Context, s Store, email, firstHint, lastHint string) (*Prospect, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, eris.Wrap(ErrInvalidIdentity, "crm: missing email")
	}
	if err := r.validate.Var(email, "email"); err != nil {
		return nil, false, eris.Wrapf(ErrInvalidIdentity, "crm: malformed email %q", email)
	}

	existing, err := s.FindProspectByEmail(ctx, email)
	if err != nil {
		return nil, false, wrapPersistence(err, "crm: resolve lookup")
	}
	if existing != nil {
		zap.L().Debug("resolve: matched by email",
			zap.String("email", email),
			zap.String("prospect_id", existing.ID),
		)
		return existing, false, nil
	}

	p := &Prospect{
		Email:     email,
		FirstName: orDefault(firstHint, PlaceholderFirstName),
		LastName:  orDefault(lastHint, PlaceholderLastName),
		Status:    StatusLead,
		Priority:  PriorityMedium,
		Source:    SourceWebsite,
	}
	if err := s.CreateProspect(ctx, p); err != nil {
		return nil, false, wrapPersistence(err, "crm: create prospect")
	}

	zap.L().Info("resolve: created prospect",
		zap.String("email", email),
		zap.String("prospect_id", p.ID),
	)
	return p, true, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
