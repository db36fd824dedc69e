package crm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// InterestTracker records which formations and services a prospect has
// shown interest in. Associations are set-valued: re-adding an existing
// interest is a no-op.
type InterestTracker struct{}

// NewInterestTracker creates an interest tracker.
func NewInterestTracker() *InterestTracker {
	return &InterestTracker{}
}

// AddInterest associates the prospect with a formation and/or service.
// Empty ids are skipped. Each id is fetched through the given store so
// the reference is checked inside the active transaction; an unknown id
// fails with ErrUnresolvableReference. Never touches the prospect's
// status or source.
func (t *InterestTracker) AddInterest(ctx context.Context, s Store, p *Prospect, formationID, serviceID string) error {
	if formationID != "" {
		f, err := s.GetFormation(ctx, formationID)
		if err != nil {
			return wrapPersistence(err, "crm: fetch formation")
		}
		if f == nil {
			return eris.Wrapf(ErrUnresolvableReference, "crm: formation %s", formationID)
		}
		if err := s.AddFormationInterest(ctx, p.ID, f.ID); err != nil {
			return wrapPersistence(err, "crm: add formation interest")
		}
		zap.L().Debug("interest: formation added",
			zap.String("prospect_id", p.ID),
			zap.String("formation_id", f.ID),
		)
	}

	if serviceID != "" {
		sv, err := s.GetService(ctx, serviceID)
		if err != nil {
			return wrapPersistence(err, "crm: fetch service")
		}
		if sv == nil {
			return eris.Wrapf(ErrUnresolvableReference, "crm: service %s", serviceID)
		}
		if err := s.AddServiceInterest(ctx, p.ID, sv.ID); err != nil {
			return wrapPersistence(err, "crm: add service interest")
		}
		zap.L().Debug("interest: service added",
			zap.String("prospect_id", p.ID),
			zap.String("service_id", sv.ID),
		)
	}

	return nil
}
