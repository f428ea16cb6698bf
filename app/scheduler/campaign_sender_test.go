package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/app/services"
	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/models"
	testingutil "github.com/harborcrm/harbor-backend/testing"
)

type senderFixture struct {
	campaignRepo  *testingutil.FakeCampaignRepository
	recipientRepo *testingutil.FakeRecipientRepository
	provider      *services.MockEmailProvider
	quota         services.DailyQuota
	sender        *CampaignSender
	stop          func()
}

func newSenderFixture(t *testing.T, dailyLimit, batchSize int) *senderFixture {
	t.Helper()

	campaignRepo := testingutil.NewFakeCampaignRepository()
	recipientRepo := testingutil.NewFakeRecipientRepository()
	provider := services.NewMockEmailProvider(dailyLimit, batchSize)
	quota := services.NewMemoryDailyQuota()
	tokens := services.NewUnsubscribeTokenService("test-secret")

	sender := NewCampaignSender(
		campaignRepo, recipientRepo, provider, quota, tokens,
		config.AppConfig{BaseURL: "https://crm.example.com"},
		config.SchedulerConfig{
			ResumeInterval:     50 * time.Millisecond,
			ActivationInterval: 20 * time.Millisecond,
			BatchDelay:         time.Millisecond,
		},
		log.New(io.Discard, "", 0),
		nil,
	)

	stop := sender.Start(context.Background())
	t.Cleanup(stop)

	return &senderFixture{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		provider:      provider,
		quota:         quota,
		sender:        sender,
		stop:          stop,
	}
}

// waitForStatus polls until the campaign reaches the status or the deadline passes
func waitForStatus(t *testing.T, repo *testingutil.FakeCampaignRepository, id uint, status models.CampaignStatus) *models.EmailCampaign {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c, err := repo.ByID(context.Background(), id)
		require.NoError(t, err)
		if c != nil && c.Status == status {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("campaign %d never reached status %s", id, status)
	return nil
}

func TestDrainCompletesCampaign(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 100, 2)

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Launch", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com",
	})
	require.NoError(t, err)

	f.sender.Dispatch(campaign.ID)

	done := waitForStatus(t, f.campaignRepo, campaign.ID, models.CampaignStatusSent)
	assert.Equal(t, 5, done.SentCount)
	assert.Zero(t, done.FailedCount)
	assert.Equal(t, 5, f.provider.SentCount())

	counts, err := f.recipientRepo.CountByStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, counts[models.RecipientStatusSent])
	assert.Zero(t, counts[models.RecipientStatusQueued])

	used, err := f.quota.Used(ctx, "mock")
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestDrainRecordsPerRecipientFailures(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 100, 10)
	f.provider.FailAddresses["bad@example.com"] = "mailbox full"

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Mixed", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{
		"good@example.com", "bad@example.com",
	})
	require.NoError(t, err)

	f.sender.Dispatch(campaign.ID)

	done := waitForStatus(t, f.campaignRepo, campaign.ID, models.CampaignStatusSent)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)

	counts, err := f.recipientRepo.CountByStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.RecipientStatusSent])
	assert.EqualValues(t, 1, counts[models.RecipientStatusFailed])

	failed, err := f.recipientRepo.LatestByEmail(ctx, "bad@example.com")
	require.NoError(t, err)
	require.NotNil(t, failed)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "mailbox full", *failed.ErrorMessage)
}

func TestDrainPausesOnQuotaExhaustion(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 2, 2)

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Capped", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{
		"a@example.com", "b@example.com", "c@example.com",
	})
	require.NoError(t, err)

	f.sender.Dispatch(campaign.ID)

	// two sends fit under the daily limit, the third stays queued
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		counts, err := f.recipientRepo.CountByStatus(ctx, campaign.ID)
		require.NoError(t, err)
		if counts[models.RecipientStatusSent] == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSending, stored.Status)

	counts, err := f.recipientRepo.CountByStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[models.RecipientStatusSent])
	assert.EqualValues(t, 1, counts[models.RecipientStatusQueued])
}

func TestDrainBacksOffOnProviderOutage(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 100, 10)
	f.provider.SetBatchError(errors.New("dial tcp: connection refused"))

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Outage", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{
		"a@example.com", "b@example.com",
	})
	require.NoError(t, err)

	f.sender.Dispatch(campaign.ID)

	// the drain gives up on the dead provider: nothing sent, ledger intact,
	// campaign still in sending
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, f.provider.SentCount())
	counts, err := f.recipientRepo.CountByStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[models.RecipientStatusQueued])

	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSending, stored.Status)

	// once the provider recovers, the resume ticker finishes the campaign
	f.provider.SetBatchError(nil)

	done := waitForStatus(t, f.campaignRepo, campaign.ID, models.CampaignStatusSent)
	assert.Equal(t, 2, done.SentCount)
	assert.Equal(t, 2, f.provider.SentCount())
}

func TestResumePicksUpStuckCampaigns(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 100, 10)

	// seeded after Start, so only the resume ticker can find it
	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Stuck", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{"a@example.com"})
	require.NoError(t, err)

	done := waitForStatus(t, f.campaignRepo, campaign.ID, models.CampaignStatusSent)
	assert.Equal(t, 1, done.SentCount)
}

func TestActivationClaimsDueScheduledCampaigns(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 100, 10)

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Timed", models.CampaignStatusScheduled)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Minute)
	campaign.ScheduledAt = &past
	require.NoError(t, f.campaignRepo.Update(ctx, campaign))
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{"a@example.com"})
	require.NoError(t, err)

	done := waitForStatus(t, f.campaignRepo, campaign.ID, models.CampaignStatusSent)
	assert.Equal(t, 1, done.SentCount)
}

func TestSendBatchCarriesUnsubscribeLinks(t *testing.T) {
	ctx := context.Background()
	f := newSenderFixture(t, 100, 10)

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Links", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{"a@example.com"})
	require.NoError(t, err)

	f.sender.Dispatch(campaign.ID)
	waitForStatus(t, f.campaignRepo, campaign.ID, models.CampaignStatusSent)

	require.Equal(t, 1, f.provider.SentCount())
	req := f.provider.Sent[0]
	assert.Contains(t, req.UnsubscribeURL, "https://crm.example.com/api/v1/unsubscribe/")
	assert.Equal(t, campaign.Subject, req.Subject)
}
