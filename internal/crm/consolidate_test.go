package crm

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidateAll_NoDuplicates(t *testing.T) {
	st := newTestStore(t)

	mustCreateProspect(t, st, &Prospect{Email: "a@example.com"})
	mustCreateProspect(t, st, &Prospect{Email: "b@example.com"})

	report, err := NewConsolidator(st).ConsolidateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Merged)
	assert.Empty(t, report.Failed)
}

func TestConsolidateAll_FieldMergeExample(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Earliest-created record with an empty phone and the lowest status.
	p1 := mustCreateProspect(t, st, &Prospect{
		Email:     "a@x.com",
		Status:    StatusLead,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	p2 := mustCreateProspect(t, st, &Prospect{
		Email:     "a@x.com",
		Status:    StatusQualified,
		Phone:     "0600000000",
		CreatedAt: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	})

	report, err := NewConsolidator(st).ConsolidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	remaining, err := st.ListProspectsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	kept := remaining[0]
	assert.Equal(t, p1.ID, kept.ID)
	assert.Equal(t, StatusQualified, kept.Status)
	assert.Equal(t, "0600000000", kept.Phone)

	gone, err := st.GetProspect(ctx, p2.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Merge marker recorded on the surviving record.
	events, err := st.ListEvents(ctx, kept.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, EventMerge, events[len(events)-1].Type)
}

func TestConsolidateAll_DateRules(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	earlyContact := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	lateContact := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	soonFollowUp := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	lateFollowUp := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mustCreateProspect(t, st, &Prospect{
		Email:            "d@x.com",
		LastContactDate:  &earlyContact,
		NextFollowUpDate: &lateFollowUp,
		CreatedAt:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	mustCreateProspect(t, st, &Prospect{
		Email:            "d@x.com",
		LastContactDate:  &lateContact,
		NextFollowUpDate: &soonFollowUp,
		CreatedAt:        time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	_, err := NewConsolidator(st).ConsolidateAll(ctx)
	require.NoError(t, err)

	kept, err := st.FindProspectByEmail(ctx, "d@x.com")
	require.NoError(t, err)
	require.NotNil(t, kept)
	// Most recent contact, soonest follow-up.
	assert.True(t, kept.LastContactDate.Equal(lateContact))
	assert.True(t, kept.NextFollowUpDate.Equal(soonFollowUp))
}

func TestConsolidateAll_RelationshipsConverge(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	f := &Formation{Title: "Bureautique"}
	require.NoError(t, st.CreateFormation(ctx, f))

	var ids []string
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		p := mustCreateProspect(t, st, &Prospect{
			Email:     "n@x.com",
			CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		})
		ids = append(ids, p.ID)

		cr := &ContactRequest{Type: ContactTypeQuote, Email: "n@x.com", Subject: "Devis", ProspectID: p.ID}
		require.NoError(t, st.CreateContactRequest(ctx, cr))
		require.NoError(t, st.AddFormationInterest(ctx, p.ID, f.ID))
	}

	report, err := NewConsolidator(st).ConsolidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Merged)

	remaining, err := st.ListProspectsByEmail(ctx, "n@x.com")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ids[0], remaining[0].ID)

	// All three touchpoints now point at the survivor; interests unioned
	// without duplication.
	crs, err := st.ListContactRequestsByProspect(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, crs, 3)

	interests, err := st.ListFormationInterests(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, interests, 1)
}

func TestConsolidateAll_RerunIsNoop(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mustCreateProspect(t, st, &Prospect{
		Email:     "r@x.com",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	mustCreateProspect(t, st, &Prospect{
		Email:     "r@x.com",
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	c := NewConsolidator(st)

	first, err := c.ConsolidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Merged)

	second, err := c.ConsolidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Merged)
}

func TestConsolidateAll_SourceSpecificityMerged(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mustCreateProspect(t, st, &Prospect{
		Email:     "s@x.com",
		Source:    SourceWebsite,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	mustCreateProspect(t, st, &Prospect{
		Email:     "s@x.com",
		Source:    SourceNeedsAnalysis,
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	_, err := NewConsolidator(st).ConsolidateAll(ctx)
	require.NoError(t, err)

	kept, err := st.FindProspectByEmail(ctx, "s@x.com")
	require.NoError(t, err)
	assert.Equal(t, SourceNeedsAnalysis, kept.Source)
}

// consolidateFailStore makes duplicate listing fail for one email so the
// per-group isolation policy can be observed.
type consolidateFailStore struct {
	Store
	failEmail string
}

func (s *consolidateFailStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.Store.InTx(ctx, func(tx Store) error {
		return fn(&consolidateFailTx{Store: tx, failEmail: s.failEmail})
	})
}

type consolidateFailTx struct {
	Store
	failEmail string
}

func (s *consolidateFailTx) ListProspectsByEmail(ctx context.Context, email string) ([]Prospect, error) {
	if email == s.failEmail {
		return nil, eris.New("storage offline")
	}
	return s.Store.ListProspectsByEmail(ctx, email)
}

func TestConsolidateAll_GroupFailureIsolated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"bad@x.com", "good@x.com"} {
		mustCreateProspect(t, st, &Prospect{
			Email:     email,
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		mustCreateProspect(t, st, &Prospect{
			Email:     email,
			CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		})
	}

	c := NewConsolidator(&consolidateFailStore{Store: st, failEmail: "bad@x.com"})

	report, err := c.ConsolidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, []string{"bad@x.com"}, report.Failed)

	// The healthy group converged despite the failing one.
	good, err := st.ListProspectsByEmail(ctx, "good@x.com")
	require.NoError(t, err)
	assert.Len(t, good, 1)
	bad, err := st.ListProspectsByEmail(ctx, "bad@x.com")
	require.NoError(t, err)
	assert.Len(t, bad, 2)
}
