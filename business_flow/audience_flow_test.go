package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/models"
	testingutil "github.com/harborcrm/harbor-backend/testing"
)

func newAudienceFixture() (*testingutil.FakeContactRepository, *testingutil.FakeLeadRepository, *testingutil.FakeUnsubscribedEmailRepository, AudienceFlow) {
	contactRepo := &testingutil.FakeContactRepository{}
	leadRepo := &testingutil.FakeLeadRepository{}
	unsubscribedRepo := testingutil.NewFakeUnsubscribedEmailRepository()
	flow := NewAudienceFlow(contactRepo, leadRepo, unsubscribedRepo)
	return contactRepo, leadRepo, unsubscribedRepo, flow
}

func TestResolveContactsFiltersSuppressed(t *testing.T) {
	ctx := context.Background()
	contactRepo, _, unsubscribedRepo, flow := newAudienceFixture()

	contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "alice@example.com"),
		testingutil.NewTestContact(2, 7, "Bob", "bob@example.com"),
	}
	require.NoError(t, unsubscribedRepo.Suppress(ctx, &models.UnsubscribedEmail{
		InstitutionID: 7,
		Email:         "bob@example.com",
	}))

	recipients, err := flow.Resolve(ctx, 7, models.AudienceFilter{Source: models.AudienceSourceContacts})
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "alice@example.com", recipients[0].Email)
	require.NotNil(t, recipients[0].ContactID)
	assert.Equal(t, uint(1), *recipients[0].ContactID)
}

func TestResolveDeduplicatesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	contactRepo, _, _, flow := newAudienceFixture()

	contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "Alice@Example.com"),
		testingutil.NewTestContact(2, 7, "Alice Again", "alice@example.com"),
	}

	recipients, err := flow.Resolve(ctx, 7, models.AudienceFilter{Source: models.AudienceSourceContacts})
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	// first occurrence wins
	require.NotNil(t, recipients[0].ContactID)
	assert.Equal(t, uint(1), *recipients[0].ContactID)
}

func TestResolveLeadsByCriteria(t *testing.T) {
	ctx := context.Background()
	_, leadRepo, _, flow := newAudienceFixture()

	qualified := models.LeadStatusQualified
	lost := models.LeadStatusLost
	l1 := testingutil.NewTestLead(1, 7, "Quinn", "quinn@example.com")
	l1.Status = &qualified
	l2 := testingutil.NewTestLead(2, 7, "Lou", "lou@example.com")
	l2.Status = &lost
	leadRepo.Leads = []*models.Lead{l1, l2}

	recipients, err := flow.Resolve(ctx, 7, models.AudienceFilter{
		Source:  models.AudienceSourceLeads,
		Filters: models.AudienceCriteria{Status: []string{models.LeadStatusQualified}},
	})
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "quinn@example.com", recipients[0].Email)
	require.NotNil(t, recipients[0].LeadID)
	assert.Equal(t, uint(1), *recipients[0].LeadID)
}

func TestResolveRejectsInvalidSource(t *testing.T) {
	_, _, _, flow := newAudienceFixture()

	_, err := flow.Resolve(context.Background(), 7, models.AudienceFilter{Source: "segments"})
	assert.Error(t, err)
}

func TestResolveScopesByInstitution(t *testing.T) {
	ctx := context.Background()
	contactRepo, _, _, flow := newAudienceFixture()

	contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Mine", "mine@example.com"),
		testingutil.NewTestContact(2, 8, "Theirs", "theirs@example.com"),
	}

	recipients, err := flow.Resolve(ctx, 7, models.AudienceFilter{Source: models.AudienceSourceContacts})
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "mine@example.com", recipients[0].Email)
}

func TestEstimateMatchesResolve(t *testing.T) {
	ctx := context.Background()
	contactRepo, _, _, flow := newAudienceFixture()

	contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "alice@example.com"),
		testingutil.NewTestContact(2, 7, "Bob", "bob@example.com"),
		testingutil.NewTestContact(3, 7, "Bob Dup", "BOB@example.com"),
	}

	filter := models.AudienceFilter{Source: models.AudienceSourceContacts}
	recipients, err := flow.Resolve(ctx, 7, filter)
	require.NoError(t, err)

	estimate, err := flow.Estimate(ctx, 7, filter)
	require.NoError(t, err)
	assert.Equal(t, len(recipients), estimate)
	assert.Equal(t, 2, estimate)
}
