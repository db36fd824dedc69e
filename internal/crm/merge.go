package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Merger folds touchpoints into prospect records. One entry point per
// touchpoint type, each running the same sequence inside a single
// transaction: resolve the prospect, fill empty profile fields, advance
// the contact date, log an event, apply the type's source and status
// rules, record interests and finally link the touchpoint back to the
// prospect.
type Merger struct {
	store    Store
	resolver *Resolver
	tracker  *InterestTracker
	notifier Notifier
}

// NewMerger creates a touchpoint merger. notifier may be nil.
func NewMerger(store Store, notifier Notifier) *Merger {
	return &Merger{
		store:    store,
		resolver: NewResolver(),
		tracker:  NewInterestTracker(),
		notifier: notifier,
	}
}

// touchpointView is what the shared merge sequence needs from any
// touchpoint type.
type touchpointView struct {
	email     string
	firstName string
	lastName  string
	phone     string
	company   string
	position  string

	eventType string
	eventBody string

	source      string
	promoteTo   Status // StatusLead means "no promotion"
	formationID string
	serviceID   string
	createdAt   time.Time

	link func(ctx context.Context, s Store, prospectID string) error
}

// MergeContactRequest merges the contact request with the given id into
// its prospect and returns the resolved prospect.
func (m *Merger) MergeContactRequest(ctx context.Context, id string) (*Prospect, error) {
	cr, err := m.store.GetContactRequest(ctx, id)
	if err != nil {
		return nil, wrapPersistence(err, "crm: load contact request")
	}
	if cr == nil {
		return nil, eris.Wrapf(ErrUnresolvableReference, "crm: contact request %s", id)
	}

	body := cr.Subject
	if cr.Message != "" {
		body = fmt.Sprintf("%s - %s", cr.Subject, cr.Message)
	}
	view := touchpointView{
		email:       cr.Email,
		firstName:   cr.FirstName,
		lastName:    cr.LastName,
		phone:       cr.Phone,
		company:     cr.Company,
		eventType:   contactSource(cr.Type),
		eventBody:   body,
		source:      contactSource(cr.Type),
		promoteTo:   contactPromotion(cr.Type),
		serviceID:   cr.ServiceID,
		createdAt:   cr.CreatedAt,
		link: func(ctx context.Context, s Store, prospectID string) error {
			return s.LinkContactRequest(ctx, cr.ID, prospectID)
		},
	}
	return m.merge(ctx, view)
}

// MergeSessionRegistration merges the session registration with the
// given id into its prospect.
func (m *Merger) MergeSessionRegistration(ctx context.Context, id string) (*Prospect, error) {
	sr, err := m.store.GetSessionRegistration(ctx, id)
	if err != nil {
		return nil, wrapPersistence(err, "crm: load session registration")
	}
	if sr == nil {
		return nil, eris.Wrapf(ErrUnresolvableReference, "crm: session registration %s", id)
	}

	body := "inscription à une session de formation"
	if sr.SpecialRequirements != "" {
		body = fmt.Sprintf("%s (exigences: %s)", body, sr.SpecialRequirements)
	}
	view := touchpointView{
		email:       sr.Email,
		firstName:   sr.FirstName,
		lastName:    sr.LastName,
		phone:       sr.Phone,
		company:     sr.Company,
		position:    sr.Position,
		eventType:   SourceSessionRegistration,
		eventBody:   body,
		source:      SourceSessionRegistration,
		promoteTo:   StatusQualified,
		formationID: sr.FormationID,
		createdAt:   sr.CreatedAt,
		link: func(ctx context.Context, s Store, prospectID string) error {
			return s.LinkSessionRegistration(ctx, sr.ID, prospectID)
		},
	}
	return m.merge(ctx, view)
}

// MergeNeedsAnalysis merges the needs-analysis request with the given id
// into its prospect. The recipient's full name is split into first and
// last name.
func (m *Merger) MergeNeedsAnalysis(ctx context.Context, id string) (*Prospect, error) {
	na, err := m.store.GetNeedsAnalysisRequest(ctx, id)
	if err != nil {
		return nil, wrapPersistence(err, "crm: load needs-analysis request")
	}
	if na == nil {
		return nil, eris.Wrapf(ErrUnresolvableReference, "crm: needs-analysis request %s", id)
	}

	first, last := SplitRecipientName(na.RecipientName)
	body := "demande d'analyse des besoins"
	if na.AdminNotes != "" {
		body = fmt.Sprintf("%s (notes: %s)", body, na.AdminNotes)
	}
	view := touchpointView{
		email:       na.RecipientEmail,
		firstName:   first,
		lastName:    last,
		company:     na.CompanyName,
		eventType:   SourceNeedsAnalysis,
		eventBody:   body,
		source:      SourceNeedsAnalysis,
		promoteTo:   StatusQualified,
		formationID: na.FormationID,
		createdAt:   na.CreatedAt,
		link: func(ctx context.Context, s Store, prospectID string) error {
			return s.LinkNeedsAnalysisRequest(ctx, na.ID, prospectID)
		},
	}
	return m.merge(ctx, view)
}

// merge runs the shared sequence inside one transaction and fires the
// notifier after commit.
func (m *Merger) merge(ctx context.Context, view touchpointView) (*Prospect, error) {
	var (
		resolved *Prospect
		created  bool
	)
	err := m.store.InTx(ctx, func(tx Store) error {
		p, isNew, err := m.resolver.Resolve(ctx, tx, view.email, view.firstName, view.lastName)
		if err != nil {
			return err
		}

		fillEmpty(&p.Phone, view.phone)
		fillEmpty(&p.Company, view.company)
		fillEmpty(&p.Position, view.position)

		// Contact recency always advances, even when every profile
		// field was rejected by the fill-only rule.
		at := view.createdAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		p.LastContactDate = &at

		if view.source != "" && sourceReplaceable(p.Source) {
			p.Source = view.source
		}
		if view.promoteTo != StatusLead && p.Status.Before(view.promoteTo) {
			zap.L().Info("merge: status promoted",
				zap.String("prospect_id", p.ID),
				zap.String("from", string(p.Status)),
				zap.String("to", string(view.promoteTo)),
			)
			p.Status = view.promoteTo
		}

		if err := tx.UpdateProspect(ctx, p); err != nil {
			return wrapPersistence(err, "crm: update prospect")
		}

		ev := &ProspectEvent{
			ProspectID: p.ID,
			Type:       view.eventType,
			Body:       view.eventBody,
			OccurredAt: at,
		}
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return wrapPersistence(err, "crm: append event")
		}

		if view.formationID != "" || view.serviceID != "" {
			if err := m.tracker.AddInterest(ctx, tx, p, view.formationID, view.serviceID); err != nil {
				return err
			}
		}

		if err := view.link(ctx, tx, p.ID); err != nil {
			return wrapPersistence(err, "crm: link touchpoint")
		}

		resolved, created = p, isNew
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.notifier != nil {
		event := "touchpoint"
		if created {
			event = "new_prospect"
		}
		if err := m.notifier.Notify(ctx, resolved, event); err != nil {
			zap.L().Warn("merge: notification failed",
				zap.String("prospect_id", resolved.ID),
				zap.Error(err),
			)
		}
	}
	return resolved, nil
}

// fillEmpty sets dst from src only when dst is currently empty.
func fillEmpty(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

// sourceReplaceable reports whether the current source may be replaced
// by a type-specific one. A specific source is never downgraded.
func sourceReplaceable(current string) bool {
	return current == "" || current == SourceWebsite
}

func contactSource(contactType string) string {
	switch contactType {
	case ContactTypeQuote:
		return SourceQuoteRequest
	case ContactTypeConsultation:
		return SourceConsultationRequest
	case ContactTypeInformation:
		return SourceInformationRequest
	case ContactTypeQuickRegistration:
		return SourceQuickRegistration
	default:
		return SourceContactForm
	}
}

func contactPromotion(contactType string) Status {
	switch contactType {
	case ContactTypeQuote, ContactTypeConsultation:
		return StatusProspect
	case ContactTypeQuickRegistration:
		return StatusQualified
	default:
		return StatusLead
	}
}
