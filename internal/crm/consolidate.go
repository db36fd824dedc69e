package crm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Consolidator folds duplicate prospects (same email) into a single
// record. Duplicates are a transient state tolerated at write time and
// corrected here.
type Consolidator struct {
	store Store
}

// NewConsolidator creates a duplicate consolidator.
func NewConsolidator(store Store) *Consolidator {
	return &Consolidator{store: store}
}

// Report summarizes one consolidation run.
type Report struct {
	// Merged counts successful (target, source) pair merges.
	Merged int `json:"merged"`
	// Failed lists the emails of duplicate groups that could not be
	// consolidated in this run.
	Failed []string `json:"failed,omitempty"`
}

// ConsolidateAll merges every duplicate group. Each group runs in its
// own transaction; a failing group is logged, recorded in the report and
// skipped so the rest of the batch still converges. Re-running over
// consolidated data merges nothing.
func (c *Consolidator) ConsolidateAll(ctx context.Context) (Report, error) {
	var report Report

	groups, err := c.store.DuplicateEmails(ctx)
	if err != nil {
		return report, wrapPersistence(err, "crm: list duplicate emails")
	}

	for _, group := range groups {
		merged, err := c.consolidateGroup(ctx, group.Email)
		if err != nil {
			zap.L().Warn("consolidate: group failed",
				zap.String("email", group.Email),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, group.Email)
			continue
		}
		report.Merged += merged
	}

	zap.L().Info("consolidate: run complete",
		zap.Int("groups", len(groups)),
		zap.Int("merged", report.Merged),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// consolidateGroup merges all prospects sharing one email into the
// earliest-created record. Returns the number of pair merges performed.
func (c *Consolidator) consolidateGroup(ctx context.Context, email string) (int, error) {
	merged := 0
	err := c.store.InTx(ctx, func(tx Store) error {
		// Ordered oldest first, so the head is the canonical target.
		prospects, err := tx.ListProspectsByEmail(ctx, email)
		if err != nil {
			return wrapPersistence(err, "crm: list duplicates")
		}
		if len(prospects) < 2 {
			return nil
		}

		target := &prospects[0]
		for i := 1; i < len(prospects); i++ {
			if err := c.mergePair(ctx, tx, target, &prospects[i]); err != nil {
				return err
			}
			merged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return merged, nil
}

// mergePair folds source into target: fill-only scalars, recency rules
// for the two dates, forward-only status, relationship re-point, then
// deletes the source.
func (c *Consolidator) mergePair(ctx context.Context, tx Store, target, source *Prospect) error {
	fillEmpty(&target.Phone, source.Phone)
	fillEmpty(&target.Company, source.Company)
	fillEmpty(&target.Position, source.Position)

	// Most recent contact wins.
	if source.LastContactDate != nil &&
		(target.LastContactDate == nil || source.LastContactDate.After(*target.LastContactDate)) {
		target.LastContactDate = source.LastContactDate
	}
	// Soonest pending follow-up wins.
	if source.NextFollowUpDate != nil &&
		(target.NextFollowUpDate == nil || source.NextFollowUpDate.Before(*target.NextFollowUpDate)) {
		target.NextFollowUpDate = source.NextFollowUpDate
	}
	if target.Status.Before(source.Status) {
		target.Status = source.Status
	}
	if sourceReplaceable(target.Source) && !sourceReplaceable(source.Source) {
		target.Source = source.Source
	}

	if err := tx.RepointEvents(ctx, source.ID, target.ID); err != nil {
		return wrapPersistence(err, "crm: re-point events")
	}
	marker := &ProspectEvent{
		ProspectID: target.ID,
		Type:       EventMerge,
		Body:       fmt.Sprintf("fiche doublon %s fusionnée", source.ID),
	}
	if err := tx.AppendEvent(ctx, marker); err != nil {
		return wrapPersistence(err, "crm: append merge marker")
	}

	if err := tx.RepointTouchpoints(ctx, source.ID, target.ID); err != nil {
		return wrapPersistence(err, "crm: re-point touchpoints")
	}
	if err := tx.RepointInterests(ctx, source.ID, target.ID); err != nil {
		return wrapPersistence(err, "crm: re-point interests")
	}

	if err := tx.UpdateProspect(ctx, target); err != nil {
		return wrapPersistence(err, "crm: update merge target")
	}
	if err := tx.DeleteProspect(ctx, source.ID); err != nil {
		return wrapPersistence(err, "crm: delete merge source")
	}

	zap.L().Info("consolidate: pair merged",
		zap.String("email", target.Email),
		zap.String("target_id", target.ID),
		zap.String("source_id", source.ID),
	)
	return nil
}
