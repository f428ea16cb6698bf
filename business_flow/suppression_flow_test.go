package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/app/dto"
	"github.com/harborcrm/harbor-backend/app/services"
	"github.com/harborcrm/harbor-backend/models"
	testingutil "github.com/harborcrm/harbor-backend/testing"
)

type suppressionFixture struct {
	unsubscribedRepo *testingutil.FakeUnsubscribedEmailRepository
	campaignRepo     *testingutil.FakeCampaignRepository
	eventRepo        *testingutil.FakeEventRepository
	tokens           services.UnsubscribeTokenService
	flow             SuppressionFlow
}

func newSuppressionFixture() *suppressionFixture {
	unsubscribedRepo := testingutil.NewFakeUnsubscribedEmailRepository()
	campaignRepo := testingutil.NewFakeCampaignRepository()
	eventRepo := testingutil.NewFakeEventRepository()
	tokens := services.NewUnsubscribeTokenService("test-secret")
	flow := NewSuppressionFlow(unsubscribedRepo, campaignRepo, eventRepo, tokens, nil)
	return &suppressionFixture{
		unsubscribedRepo: unsubscribedRepo,
		campaignRepo:     campaignRepo,
		eventRepo:        eventRepo,
		tokens:           tokens,
		flow:             flow,
	}
}

func TestAddSuppressionNormalizesAndDefaults(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	resp, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{
		InstitutionID: 7,
		Email:         "  Bob@Example.COM ",
	}, NewClientMetadata("10.0.0.1", "curl/8"))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", resp.Email)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, "manual", *resp.Reason)

	entry, err := f.unsubscribedRepo.ByEmail(ctx, 7, "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestAddSuppressionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	for i := 0; i < 3; i++ {
		_, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{
			InstitutionID: 7,
			Email:         "bob@example.com",
		}, nil)
		require.NoError(t, err)
	}

	total, err := f.unsubscribedRepo.Count(ctx, models.UnsubscribedEmailFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestAddSuppressionDuplicateReturnsStoredEntry(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	reason := "hard_bounce"
	first, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{
		InstitutionID: 7,
		Email:         "bob@example.com",
		Reason:        &reason,
	}, nil)
	require.NoError(t, err)

	other := "manual"
	second, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{
		InstitutionID: 7,
		Email:         "BOB@example.com",
		Reason:        &other,
	}, nil)
	require.NoError(t, err)

	// The duplicate insert is a no-op, so the original row comes back
	require.NotNil(t, second.Reason)
	assert.Equal(t, "hard_bounce", *second.Reason)
	assert.Equal(t, first.UnsubscribedAt, second.UnsubscribedAt)
}

func TestAddSuppressionRejectsInvalidEmail(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{InstitutionID: 7, Email: email}, nil)
		require.Error(t, err, "email %q should be rejected", email)
		assert.True(t, IsValidationError(err))
	}
}

func TestRemoveSuppression(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	_, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{InstitutionID: 7, Email: "bob@example.com"}, nil)
	require.NoError(t, err)

	require.NoError(t, f.flow.RemoveSuppression(ctx, &dto.RemoveSuppressionRequest{InstitutionID: 7, Email: "BOB@example.com"}))

	err = f.flow.RemoveSuppression(ctx, &dto.RemoveSuppressionRequest{InstitutionID: 7, Email: "bob@example.com"})
	require.Error(t, err)
	assert.True(t, IsSuppressionNotFound(err))
}

func TestListSuppressionsSearch(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	for _, email := range []string{"alice@example.com", "bob@example.com", "bob@other.net"} {
		_, err := f.flow.AddSuppression(ctx, &dto.AddSuppressionRequest{InstitutionID: 7, Email: email}, nil)
		require.NoError(t, err)
	}

	search := "bob"
	resp, err := f.flow.ListSuppressions(ctx, &dto.ListSuppressionsRequest{InstitutionID: 7, Search: &search})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Pagination.Total)
	require.Len(t, resp.Items, 2)
}

func TestProcessUnsubscribeSuppressesOnce(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	campaignID := uint(3)
	require.NoError(t, f.flow.ProcessUnsubscribe(ctx, 7, "Sue@Example.com", &campaignID, "", nil))
	require.NoError(t, f.flow.ProcessUnsubscribe(ctx, 7, "sue@example.com", &campaignID, "", nil))

	entry, err := f.unsubscribedRepo.ByEmail(ctx, 7, "sue@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.Reason)
	assert.Equal(t, "unsubscribe_link", *entry.Reason)
	require.NotNil(t, entry.SourceCampaignID)
	assert.Equal(t, campaignID, *entry.SourceCampaignID)
}

func TestHandleUnsubscribeToken(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Newsletter", models.CampaignStatusSent)
	require.NoError(t, err)

	token, err := f.tokens.Encode("reader@example.com", campaign.UUID.String())
	require.NoError(t, err)

	email, err := f.flow.HandleUnsubscribeToken(ctx, token, nil)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", email)

	entry, err := f.unsubscribedRepo.ByEmail(ctx, 7, "reader@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.SourceCampaignID)
	assert.Equal(t, campaign.ID, *entry.SourceCampaignID)

	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnsubscribeCount)

	counts, err := f.eventRepo.CountsByType(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.EmailEventUnsubscribe])
}

func TestHandleUnsubscribeTokenRepeatedClicks(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Newsletter", models.CampaignStatusSent)
	require.NoError(t, err)

	token, err := f.tokens.Encode("reader@example.com", campaign.UUID.String())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		email, err := f.flow.HandleUnsubscribeToken(ctx, token, nil)
		require.NoError(t, err)
		assert.Equal(t, "reader@example.com", email)
	}

	total, err := f.unsubscribedRepo.Count(ctx, models.UnsubscribedEmailFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	// Only the first click counts: one event, counter stays at one
	counts, err := f.eventRepo.CountsByType(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.EmailEventUnsubscribe])

	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnsubscribeCount)
}

func TestHandleUnsubscribeTokenRejectsTampering(t *testing.T) {
	ctx := context.Background()
	f := newSuppressionFixture()

	_, err := f.flow.HandleUnsubscribeToken(ctx, "garbage-token", nil)
	require.Error(t, err)
	assert.True(t, IsUnsubscribeTokenInvalid(err))

	other := services.NewUnsubscribeTokenService("other-secret")
	token, err := other.Encode("reader@example.com", "abc")
	require.NoError(t, err)

	_, err = f.flow.HandleUnsubscribeToken(ctx, token, nil)
	require.Error(t, err)
	assert.True(t, IsUnsubscribeTokenInvalid(err))
}
