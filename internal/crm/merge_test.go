package crm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	prospects []*Prospect
	events    []string
	err       error
}

func (n *recordingNotifier) Notify(_ context.Context, p *Prospect, event string) error {
	n.prospects = append(n.prospects, p)
	n.events = append(n.events, event)
	return n.err
}

func TestMergeContactRequest_NewProspect(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	m := NewMerger(st, notifier)

	cr := &ContactRequest{
		Type:      ContactTypeQuote,
		FirstName: "Jean",
		LastName:  "Moulin",
		Email:     "jean@example.com",
		Phone:     "0611111111",
		Company:   "Acme",
		Subject:   "Devis",
		Message:   "Besoin d'un devis pour 5 personnes",
		CreatedAt: time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)

	assert.Equal(t, "Jean", p.FirstName)
	assert.Equal(t, "0611111111", p.Phone)
	assert.Equal(t, "Acme", p.Company)
	assert.Equal(t, StatusProspect, p.Status)
	assert.Equal(t, SourceQuoteRequest, p.Source)
	require.NotNil(t, p.LastContactDate)
	assert.True(t, p.LastContactDate.Equal(cr.CreatedAt))

	// Back-reference set.
	stored, err := st.GetContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ProspectID)

	// Event logged with the touchpoint's date and type.
	events, err := st.ListEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SourceQuoteRequest, events[0].Type)
	assert.Contains(t, events[0].Body, "Devis")
	assert.Contains(t, RenderDescription(events), "[2025-04-01]")

	// Notifier saw a new prospect.
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "new_prospect", notifier.events[0])
}

func TestMergeContactRequest_FillOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	mustCreateProspect(t, st, &Prospect{
		Email:   "kept@example.com",
		Phone:   "A",
		Company: "Première",
	})

	cr := &ContactRequest{
		Type:    ContactTypeInformation,
		Email:   "kept@example.com",
		Phone:   "B",
		Company: "Seconde",
		Subject: "Question",
	}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", p.Phone)
	assert.Equal(t, "Première", p.Company)
}

func TestMergeContactRequest_StatusNeverRegresses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	mustCreateProspect(t, st, &Prospect{
		Email:  "q@example.com",
		Status: StatusQualified,
	})

	// Quote promotes to prospect, which is below qualified.
	cr := &ContactRequest{Type: ContactTypeQuote, Email: "q@example.com", Subject: "Devis"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQualified, p.Status)
}

func TestMergeContactRequest_SourceSpecificityPreserved(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	mustCreateProspect(t, st, &Prospect{
		Email:  "src@example.com",
		Source: SourceQuoteRequest,
	})

	cr := &ContactRequest{Type: "other", Email: "src@example.com", Subject: "Divers"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceQuoteRequest, p.Source)
}

func TestMergeContactRequest_WebsiteSourceReplaced(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	mustCreateProspect(t, st, &Prospect{Email: "w@example.com", Source: SourceWebsite})

	cr := &ContactRequest{Type: ContactTypeConsultation, Email: "w@example.com", Subject: "RDV"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceConsultationRequest, p.Source)
}

func TestMergeContactRequest_QuickRegistrationPromotesToQualified(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	cr := &ContactRequest{Type: ContactTypeQuickRegistration, Email: "quick@example.com", Subject: "Inscription"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQualified, p.Status)
	assert.Equal(t, SourceQuickRegistration, p.Source)
}

func TestMergeContactRequest_InvalidEmailRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	cr := &ContactRequest{Type: ContactTypeQuote, Email: "not-an-email", Subject: "Devis"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	_, err := m.MergeContactRequest(ctx, cr.ID)
	require.Error(t, err)
	assert.True(t, IsInvalidIdentity(err))

	// Nothing committed: no prospect, touchpoint unlinked.
	stored, err := st.GetContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ProspectID)
}

func TestMergeContactRequest_UnknownID(t *testing.T) {
	st := newTestStore(t)
	m := NewMerger(st, nil)

	_, err := m.MergeContactRequest(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsUnresolvableReference(err))
}

func TestMergeContactRequest_ServiceInterest(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	sv := &Service{Name: "Audit"}
	require.NoError(t, st.CreateService(ctx, sv))

	cr := &ContactRequest{
		Type:      ContactTypeConsultation,
		Email:     "svc@example.com",
		Subject:   "Conseil",
		ServiceID: sv.ID,
	}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)

	interests, err := st.ListServiceInterests(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, interests, 1)
	assert.Equal(t, "Audit", interests[0].Name)
}

func TestMergeContactRequest_UnknownServiceRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	cr := &ContactRequest{
		Type:      ContactTypeConsultation,
		Email:     "rollback@example.com",
		Subject:   "Conseil",
		ServiceID: "ghost-service",
	}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	_, err := m.MergeContactRequest(ctx, cr.ID)
	require.Error(t, err)
	assert.True(t, IsUnresolvableReference(err))

	// The prospect created during resolution must not survive the rollback.
	p, err := st.FindProspectByEmail(ctx, "rollback@example.com")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMergeSessionRegistration(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	f := &Formation{Title: "Sécurité incendie"}
	require.NoError(t, st.CreateFormation(ctx, f))

	sr := &SessionRegistration{
		FirstName:           "Paul",
		LastName:            "Valéry",
		Email:               "paul@example.com",
		Position:            "Responsable RH",
		SpecialRequirements: "Accès PMR",
		FormationID:         f.ID,
	}
	require.NoError(t, st.CreateSessionRegistration(ctx, sr))

	p, err := m.MergeSessionRegistration(ctx, sr.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusQualified, p.Status)
	assert.Equal(t, SourceSessionRegistration, p.Source)
	assert.Equal(t, "Responsable RH", p.Position)

	interests, err := st.ListFormationInterests(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, interests, 1)

	events, err := st.ListEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Body, "Accès PMR")

	stored, err := st.GetSessionRegistration(ctx, sr.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ProspectID)
}

func TestMergeNeedsAnalysis_SplitsRecipientName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	na := &NeedsAnalysisRequest{
		RecipientName:  "Marie Curie",
		RecipientEmail: "marie@example.com",
		CompanyName:    "Institut",
		AdminNotes:     "Rappeler mardi",
	}
	require.NoError(t, st.CreateNeedsAnalysisRequest(ctx, na))

	p, err := m.MergeNeedsAnalysis(ctx, na.ID)
	require.NoError(t, err)

	assert.Equal(t, "Marie", p.FirstName)
	assert.Equal(t, "Curie", p.LastName)
	assert.Equal(t, StatusQualified, p.Status)
	assert.Equal(t, SourceNeedsAnalysis, p.Source)
	assert.Equal(t, "Institut", p.Company)

	events, err := st.ListEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Body, "Rappeler mardi")
}

func TestMergeNeedsAnalysis_MissingNameFallsBackToPlaceholders(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMerger(st, nil)

	na := &NeedsAnalysisRequest{RecipientEmail: "anon@example.com"}
	require.NoError(t, st.CreateNeedsAnalysisRequest(ctx, na))

	p, err := m.MergeNeedsAnalysis(ctx, na.ID)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderFirstName, p.FirstName)
	assert.Equal(t, PlaceholderLastName, p.LastName)
}

func TestMerge_NotifierFailureDoesNotFailMerge(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	notifier := &recordingNotifier{err: assert.AnError}
	m := NewMerger(st, notifier)

	cr := &ContactRequest{Type: ContactTypeQuote, Email: "n@example.com", Subject: "Devis"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	p, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Len(t, notifier.events, 1)
}

func TestMerge_RepeatTouchpointNotifiesActivity(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	m := NewMerger(st, notifier)

	mustCreateProspect(t, st, &Prospect{Email: "again@example.com"})

	cr := &ContactRequest{Type: ContactTypeQuote, Email: "again@example.com", Subject: "Devis"}
	require.NoError(t, st.CreateContactRequest(ctx, cr))

	_, err := m.MergeContactRequest(ctx, cr.ID)
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "touchpoint", notifier.events[0])
}
