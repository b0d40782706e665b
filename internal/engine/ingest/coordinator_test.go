package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"leadhook/internal/engine/leads"
	"leadhook/internal/platform/models"
	"leadhook/internal/testutil"
)

type recordingNotifier struct {
	calls []string
	err   error
	panic bool
}

func (n *recordingNotifier) Notify(ctx context.Context, orgID, leadID, summary string) error {
	n.calls = append(n.calls, leadID)
	if n.panic {
		panic("notification backend exploded")
	}
	return n.err
}

type failingLeadStore struct{ *leads.Repository }

func (failingLeadStore) CreateWithNotes(ctx context.Context, lead *leads.Lead, notes []string) error {
	return errors.New("database is locked")
}

func newTestCoordinator(t *testing.T, n Notifier) (*Coordinator, *leads.Repository) {
	t.Helper()
	db := testutil.TenantDB(t)
	repo := leads.NewRepository(db)
	return NewCoordinator(repo, leads.NewResolver(leads.NewTagRepository(db), ""), n), repo
}

var testEndpoint = &models.Endpoint{ID: "whe_1", OrganizationID: "org_1", Name: "Site form"}

func TestCoordinator_PartialSuccess(t *testing.T) {
	n := &recordingNotifier{}
	c, repo := newTestCoordinator(t, n)
	ctx := context.Background()

	out := c.Ingest(ctx, Batch{
		OrgID:    "org_1",
		Endpoint: testEndpoint,
		Provider: TypeGeneric,
		Leads: []CanonicalLead{
			{Phone: "+100"},
			{Name: "Ada Lovelace", Email: "ada@example.com", Source: "webhook", Tags: []string{"vip"}, Note: "call back"},
		},
	})

	require.Len(t, out.Created, 1)
	require.Len(t, out.Errors, 1)
	assert.True(t, out.Success())
	assert.Equal(t, "unknown", out.Errors[0].Lead)
	assert.Contains(t, out.Errors[0].Error, "name is required")

	lead, err := repo.GetByID(ctx, "org_1", out.Created[0].ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, leads.StatusNew, lead.Status)
	assert.Equal(t, "webhook", lead.Source)
	assert.Equal(t, "whe_1", lead.EndpointID)

	notes, err := repo.ListNotes(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Created via webhook Site form (generic)", notes[0].Body)
	assert.Equal(t, "call back", notes[1].Body)

	tags, err := repo.ListTagNames(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, tags)

	assert.Equal(t, []string{lead.ID}, n.calls)
	assert.Equal(t, []string{lead.ID}, out.LeadIDs())
}

func TestCoordinator_CountsMatchValidation(t *testing.T) {
	inputs := []CanonicalLead{
		{Name: "A"},
		{Email: "b@example.com"},
		{Name: "C", Email: "not-an-email"},
		{Name: "D", Value: -1},
		{Name: "E", Problems: []string{"value must be a number"}},
	}

	for k := 0; k <= len(inputs); k++ {
		c, _ := newTestCoordinator(t, nil)
		batch := inputs[:k]
		out := c.Ingest(context.Background(), Batch{OrgID: "org_1", Endpoint: testEndpoint, Provider: TypeGeneric, Leads: batch})

		wantCreated := k
		if wantCreated > 2 {
			wantCreated = 2
		}
		assert.Len(t, out.Created, wantCreated, "k=%d", k)
		assert.Len(t, out.Errors, k-wantCreated, "k=%d", k)
		assert.Equal(t, wantCreated > 0, out.Success(), "k=%d", k)
	}
}

func TestCoordinator_EmailOnlyLeadUsesEmailAsName(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	out := c.Ingest(context.Background(), Batch{OrgID: "org_1", Endpoint: testEndpoint, Provider: TypeGeneric,
		Leads: []CanonicalLead{{Email: "ada@example.com"}}})
	require.Len(t, out.Created, 1)
	assert.Equal(t, "ada@example.com", out.Created[0].Name)
}

func TestCoordinator_NotificationFailureDoesNotChangeOutcome(t *testing.T) {
	batch := func() Batch {
		return Batch{OrgID: "org_1", Endpoint: testEndpoint, Provider: TypeGeneric,
			Leads: []CanonicalLead{{Name: "A"}, {Name: ""}, {Name: "B"}}}
	}

	for _, n := range []*recordingNotifier{{}, {err: errors.New("smtp down")}, {panic: true}} {
		c, _ := newTestCoordinator(t, n)
		out := c.Ingest(context.Background(), batch())
		assert.Len(t, out.Created, 2)
		assert.Len(t, out.Errors, 1)
		assert.True(t, out.Success())
	}
}

func TestCoordinator_PersistenceFailureIsPerRecord(t *testing.T) {
	c := NewCoordinator(failingLeadStore{}, nil, nil)
	out := c.Ingest(context.Background(), Batch{OrgID: "org_1", Endpoint: testEndpoint, Provider: TypeGeneric,
		Leads: []CanonicalLead{{Name: "Ada"}}})

	assert.False(t, out.Success())
	require.Len(t, out.Errors, 1)
	assert.Equal(t, RecordError{Lead: "Ada", Error: "failed to save lead"}, out.Errors[0])
}
