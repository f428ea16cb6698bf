package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/app/dto"
	"github.com/harborcrm/harbor-backend/models"
	testingutil "github.com/harborcrm/harbor-backend/testing"
)

// recordingDispatcher captures dispatched campaign IDs
type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []uint
}

func (d *recordingDispatcher) Dispatch(campaignID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, campaignID)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatched)
}

type campaignFixture struct {
	campaignRepo  *testingutil.FakeCampaignRepository
	recipientRepo *testingutil.FakeRecipientRepository
	eventRepo     *testingutil.FakeEventRepository
	contactRepo   *testingutil.FakeContactRepository
	dispatcher    *recordingDispatcher
	flow          CampaignFlow
}

func newCampaignFixture() *campaignFixture {
	campaignRepo := testingutil.NewFakeCampaignRepository()
	recipientRepo := testingutil.NewFakeRecipientRepository()
	eventRepo := testingutil.NewFakeEventRepository()
	contactRepo := &testingutil.FakeContactRepository{}
	unsubscribedRepo := testingutil.NewFakeUnsubscribedEmailRepository()
	dispatcher := &recordingDispatcher{}

	audienceFlow := NewAudienceFlow(contactRepo, &testingutil.FakeLeadRepository{}, unsubscribedRepo)
	flow := NewCampaignFlow(campaignRepo, recipientRepo, eventRepo, audienceFlow, dispatcher, nil)

	return &campaignFixture{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		eventRepo:     eventRepo,
		contactRepo:   contactRepo,
		dispatcher:    dispatcher,
		flow:          flow,
	}
}

func validCreateRequest(institutionID uint) *dto.CreateCampaignRequest {
	return &dto.CreateCampaignRequest{
		InstitutionID: institutionID,
		Name:          "Spring launch",
		Subject:       "Big news",
		SenderName:    "Harbor",
		SenderEmail:   "news@harbor.test",
		HTMLContent:   "<p>Hello</p>",
		Audience:      &dto.AudienceFilter{Source: "contacts"},
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	tests := []struct {
		name   string
		mutate func(*dto.CreateCampaignRequest)
	}{
		{"missing name", func(r *dto.CreateCampaignRequest) { r.Name = "  " }},
		{"missing subject", func(r *dto.CreateCampaignRequest) { r.Subject = "" }},
		{"missing content", func(r *dto.CreateCampaignRequest) { r.HTMLContent = "" }},
		{"missing sender", func(r *dto.CreateCampaignRequest) { r.SenderEmail = "" }},
		{"missing audience", func(r *dto.CreateCampaignRequest) { r.Audience = nil }},
		{"bad source", func(r *dto.CreateCampaignRequest) { r.Audience.Source = "segments" }},
		{"bad provider", func(r *dto.CreateCampaignRequest) { bad := "sendgrid"; r.Provider = &bad }},
		{"schedule in past", func(r *dto.CreateCampaignRequest) { past := time.Now().UTC().Add(-time.Hour); r.ScheduledAt = &past }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest(7)
			tt.mutate(req)
			_, err := f.flow.CreateCampaign(ctx, req, nil)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCreateCampaignDefaultsToDraft(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()
	f.contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "alice@example.com"),
	}

	resp, err := f.flow.CreateCampaign(ctx, validCreateRequest(7), nil)
	require.NoError(t, err)
	assert.Equal(t, "draft", resp.Status)
	assert.Equal(t, 1, resp.EstimatedRecipients)

	stored, err := f.campaignRepo.ByUUID(ctx, resp.UUID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.CampaignProviderBrevo, stored.Provider)
	assert.Equal(t, 1, stored.TotalRecipients)
}

func TestCreateCampaignWithScheduleIsScheduled(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	req := validCreateRequest(7)
	future := time.Now().UTC().Add(2 * time.Hour)
	req.ScheduledAt = &future

	resp, err := f.flow.CreateCampaign(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "scheduled", resp.Status)
}

func TestGetCampaignEnforcesTenancy(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Mine", models.CampaignStatusDraft)
	require.NoError(t, err)

	_, err = f.flow.GetCampaign(ctx, &dto.GetCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 8})
	require.Error(t, err)
	assert.True(t, IsCampaignAccessDenied(err))

	_, err = f.flow.GetCampaign(ctx, &dto.GetCampaignRequest{UUID: "9c3ff1de-0000-4000-8000-000000000009", InstitutionID: 7})
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))
}

func TestUpdateCampaignGuards(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Locked", models.CampaignStatusSending)
	require.NoError(t, err)

	name := "New name"
	_, err = f.flow.UpdateCampaign(ctx, &dto.UpdateCampaignRequest{
		UUID:          campaign.UUID.String(),
		InstitutionID: 7,
		Name:          &name,
	})
	require.Error(t, err)
	assert.True(t, IsCampaignNotEditable(err))
}

func TestUpdateCampaignAppliesFields(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Draft", models.CampaignStatusDraft)
	require.NoError(t, err)

	subject := "Updated subject"
	future := time.Now().UTC().Add(3 * time.Hour)
	resp, err := f.flow.UpdateCampaign(ctx, &dto.UpdateCampaignRequest{
		UUID:          campaign.UUID.String(),
		InstitutionID: 7,
		Subject:       &subject,
		ScheduledAt:   &future,
	})
	require.NoError(t, err)
	assert.Equal(t, "Updated subject", resp.Subject)
	assert.Equal(t, "scheduled", resp.Status)

	// reverting to draft clears the schedule
	draft := "draft"
	resp, err = f.flow.UpdateCampaign(ctx, &dto.UpdateCampaignRequest{
		UUID:          campaign.UUID.String(),
		InstitutionID: 7,
		Status:        &draft,
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", resp.Status)
	assert.Nil(t, resp.ScheduledAt)
}

func TestDeleteCampaignGuards(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	sending, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Busy", models.CampaignStatusSending)
	require.NoError(t, err)

	err = f.flow.DeleteCampaign(ctx, &dto.DeleteCampaignRequest{UUID: sending.UUID.String(), InstitutionID: 7})
	require.Error(t, err)
	assert.True(t, IsCampaignNotDeletable(err))

	draft, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Idle", models.CampaignStatusDraft)
	require.NoError(t, err)
	require.NoError(t, f.flow.DeleteCampaign(ctx, &dto.DeleteCampaignRequest{UUID: draft.UUID.String(), InstitutionID: 7}))

	_, err = f.flow.GetCampaign(ctx, &dto.GetCampaignRequest{UUID: draft.UUID.String(), InstitutionID: 7})
	assert.True(t, IsCampaignNotFound(err))
}

func TestDuplicateCampaign(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	original, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Original", models.CampaignStatusSent)
	require.NoError(t, err)
	original.SentCount = 120
	require.NoError(t, f.campaignRepo.Update(ctx, original))

	resp, err := f.flow.DuplicateCampaign(ctx, &dto.DuplicateCampaignRequest{
		UUID:          original.UUID.String(),
		InstitutionID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Original (Copy)", resp.Name)
	assert.Equal(t, "draft", resp.Status)
	assert.NotEqual(t, original.UUID.String(), resp.UUID)
	assert.Zero(t, resp.SentCount)
}

func TestSendCampaignRejectsEmptyAudience(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Empty", models.CampaignStatusDraft)
	require.NoError(t, err)

	_, err = f.flow.SendCampaign(ctx, &dto.SendCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 7})
	require.Error(t, err)
	assert.True(t, IsEmptyAudience(err))

	// rejection before the claim leaves the status untouched
	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, stored.Status)
	assert.Zero(t, f.dispatcher.count())
}

func TestSendCampaignMaterializesLedger(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()
	f.contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "Alice@Example.com"),
		testingutil.NewTestContact(2, 7, "Bob", "bob@example.com"),
	}

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Launch", models.CampaignStatusDraft)
	require.NoError(t, err)

	resp, err := f.flow.SendCampaign(ctx, &dto.SendCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 7})
	require.NoError(t, err)
	assert.Equal(t, "sending", resp.Status)
	assert.Equal(t, 2, resp.TotalRecipients)
	assert.Equal(t, 1, f.dispatcher.count())

	queued, err := f.recipientRepo.NextQueuedBatch(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "alice@example.com", queued[0].Email)
}

func TestSendCampaignIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()
	f.contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "alice@example.com"),
	}

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Once", models.CampaignStatusDraft)
	require.NoError(t, err)

	_, err = f.flow.SendCampaign(ctx, &dto.SendCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 7})
	require.NoError(t, err)

	_, err = f.flow.SendCampaign(ctx, &dto.SendCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 7})
	require.Error(t, err)
	assert.True(t, IsCampaignNotSendable(err))
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestGetStatsRecomputesFromEvents(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Done", models.CampaignStatusSent)
	require.NoError(t, err)
	campaign.TotalRecipients = 10
	campaign.SentCount = 8
	campaign.FailedCount = 2
	require.NoError(t, f.campaignRepo.Update(ctx, campaign))

	now := time.Now().UTC()
	for _, e := range []models.EmailEventType{
		models.EmailEventOpen, models.EmailEventOpen, models.EmailEventOpen,
		models.EmailEventClick,
		models.EmailEventHardBounce, models.EmailEventSoftBounce,
		models.EmailEventUnsubscribe,
	} {
		require.NoError(t, f.eventRepo.Save(ctx, &models.EmailEvent{
			CampaignID:     campaign.ID,
			Email:          "user@example.com",
			EventType:      e,
			EventTimestamp: now,
		}))
	}

	stats, err := f.flow.GetStats(ctx, &dto.GetCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.OpenCount)
	assert.Equal(t, 1, stats.ClickCount)
	assert.Equal(t, 2, stats.BounceCount)
	assert.Equal(t, 1, stats.UnsubscribeCount)
	assert.InDelta(t, 37.5, stats.Rates.OpenRate, 0.001)
	assert.InDelta(t, 12.5, stats.Rates.ClickRate, 0.001)
	assert.InDelta(t, 25.0, stats.Rates.BounceRate, 0.001)
	require.Len(t, stats.RecentEvents, 7)

	// cached counters were refreshed
	stored, err := f.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.OpenCount)
	assert.Equal(t, 10, stored.TotalRecipients)
	assert.Equal(t, 8, stored.SentCount)
}

func TestGetStatsWithZeroSent(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Fresh", models.CampaignStatusDraft)
	require.NoError(t, err)

	stats, err := f.flow.GetStats(ctx, &dto.GetCampaignRequest{UUID: campaign.UUID.String(), InstitutionID: 7})
	require.NoError(t, err)
	assert.Zero(t, stats.Rates.OpenRate)
	assert.Zero(t, stats.Rates.BounceRate)
}

func TestListRecipientsPagination(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Paged", models.CampaignStatusSending)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{
		"a@example.com", "b@example.com", "c@example.com",
	})
	require.NoError(t, err)

	resp, err := f.flow.ListRecipients(ctx, &dto.ListRecipientsRequest{
		UUID:          campaign.UUID.String(),
		InstitutionID: 7,
		Page:          2,
		PageSize:      2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "c@example.com", resp.Items[0].Email)

	_, err = f.flow.ListRecipients(ctx, &dto.ListRecipientsRequest{
		UUID:          campaign.UUID.String(),
		InstitutionID: 7,
		PageSize:      500,
	})
	assert.Error(t, err)
}

func TestExportRecipients(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Export", models.CampaignStatusSent)
	require.NoError(t, err)
	_, err = testingutil.SeedRecipients(ctx, f.recipientRepo, campaign.ID, []string{"a@example.com", "b@example.com"})
	require.NoError(t, err)

	filename, content, err := f.flow.ExportRecipients(ctx, &dto.GetCampaignRequest{
		UUID:          campaign.UUID.String(),
		InstitutionID: 7,
	})
	require.NoError(t, err)
	assert.Contains(t, filename, campaign.UUID.String())
	assert.Contains(t, filename, ".xlsx")
	assert.NotEmpty(t, content)
}

func TestEstimateAudienceEndpointFlow(t *testing.T) {
	ctx := context.Background()
	f := newCampaignFixture()
	f.contactRepo.Contacts = []*models.Contact{
		testingutil.NewTestContact(1, 7, "Alice", "alice@example.com"),
	}

	resp, err := f.flow.EstimateAudience(ctx, &dto.EstimateAudienceRequest{
		InstitutionID: 7,
		Audience:      &dto.AudienceFilter{Source: "contacts"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalRecipients)

	_, err = f.flow.EstimateAudience(ctx, &dto.EstimateAudienceRequest{InstitutionID: 7})
	assert.Error(t, err)
}
