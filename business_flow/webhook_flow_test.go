package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/app/services"
	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/models"
	testingutil "github.com/harborcrm/harbor-backend/testing"
)

type webhookFixture struct {
	campaignRepo     *testingutil.FakeCampaignRepository
	recipientRepo    *testingutil.FakeRecipientRepository
	eventRepo        *testingutil.FakeEventRepository
	unsubscribedRepo *testingutil.FakeUnsubscribedEmailRepository
	flow             WebhookFlow
}

func newWebhookFixture() *webhookFixture {
	campaignRepo := testingutil.NewFakeCampaignRepository()
	recipientRepo := testingutil.NewFakeRecipientRepository()
	eventRepo := testingutil.NewFakeEventRepository()
	unsubscribedRepo := testingutil.NewFakeUnsubscribedEmailRepository()

	provider := services.NewMockEmailProvider(1000, 50)
	suppressionFlow := NewSuppressionFlow(unsubscribedRepo, campaignRepo, eventRepo, services.NewUnsubscribeTokenService("test-secret"), nil)
	flow := NewWebhookFlow(provider, recipientRepo, eventRepo, campaignRepo, suppressionFlow, nil)

	return &webhookFixture{
		campaignRepo:     campaignRepo,
		recipientRepo:    recipientRepo,
		eventRepo:        eventRepo,
		unsubscribedRepo: unsubscribedRepo,
		flow:             flow,
	}
}

func (f *webhookFixture) seedSentRecipient(t *testing.T, messageID string) (*models.EmailCampaign, *models.CampaignRecipient) {
	t.Helper()
	ctx := context.Background()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Launch", models.CampaignStatusSending)
	require.NoError(t, err)

	recipients, err := testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{"reader@example.com"})
	require.NoError(t, err)

	rec := recipients[0]
	require.NoError(t, f.recipientRepo.MarkSent(ctx, rec.ID, &messageID, campaign.CreatedAt))
	return campaign, rec
}

func TestHandleEventCorrelatesByMessageID(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture()
	campaign, rec := f.seedSentRecipient(t, "<msg-1@smtp>")

	ack, err := f.flow.HandleEvent(ctx, []byte(`{"event":"opened","email":"reader@example.com","message-id":"<msg-1@smtp>","ts":1700000000}`), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	counts, err := f.eventRepo.CountsByType(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.EmailEventOpen])

	events, err := f.eventRepo.RecentByCampaign(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, rec.CampaignID, events[0].CampaignID)
	assert.EqualValues(t, 1700000000, events[0].EventTimestamp.Unix())

	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.OpenCount)
}

func TestHandleEventFallsBackToEmail(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture()
	campaign, _ := f.seedSentRecipient(t, "<msg-1@smtp>")

	// no message id at all; the address alone must correlate
	ack, err := f.flow.HandleEvent(ctx, []byte(`{"event":"click","email":"Reader@Example.COM"}`), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	counts, err := f.eventRepo.CountsByType(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.EmailEventClick])
}

func TestHandleEventAcknowledgesUnmatched(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture()

	ack, err := f.flow.HandleEvent(ctx, []byte(`{"event":"delivered","email":"stranger@example.com"}`), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	total, err := f.eventRepo.Count(ctx, models.EmailEventFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHandleEventRejectsBadPayload(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture()

	ack, err := f.flow.HandleEvent(ctx, []byte(`{"email":"x@example.com"}`), "")
	require.Error(t, err)
	assert.True(t, IsWebhookPayloadInvalid(err))
	require.NotNil(t, ack)
	assert.False(t, ack.Received)
}

func TestHandleUnsubscribeEventSuppresses(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture()
	campaign, _ := f.seedSentRecipient(t, "<msg-1@smtp>")

	ack, err := f.flow.HandleEvent(ctx, []byte(`{"event":"unsubscribed","email":"reader@example.com","message-id":"<msg-1@smtp>"}`), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	entry, err := f.unsubscribedRepo.ByEmail(ctx, 7, "reader@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.Reason)
	assert.Equal(t, "provider_webhook", *entry.Reason)
	require.NotNil(t, entry.SourceCampaignID)
	assert.Equal(t, campaign.ID, *entry.SourceCampaignID)

	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnsubscribeCount)
}

func TestHandleEventVerifiesSignature(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture()

	provider := services.NewBrevoProvider(&config.BrevoConfig{WebhookSecret: "hush"})
	flow := NewWebhookFlow(provider, f.recipientRepo, f.eventRepo, f.campaignRepo, nil, nil)

	ack, err := flow.HandleEvent(ctx, []byte(`{"event":"delivered","email":"x@example.com"}`), "wrong")
	require.Error(t, err)
	assert.True(t, IsWebhookSignatureInvalid(err))
	require.NotNil(t, ack)
	assert.False(t, ack.Received)
}
