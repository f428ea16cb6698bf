package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/app/dto"
	"github.com/harborcrm/harbor-backend/app/services"
	businessflow "github.com/harborcrm/harbor-backend/business_flow"
	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/models"
	testingutil "github.com/harborcrm/harbor-backend/testing"
)

type webhookHandlerFixture struct {
	app          *fiber.App
	campaignRepo *testingutil.FakeCampaignRepository
	tokens       services.UnsubscribeTokenService
}

func newWebhookHandlerFixture(t *testing.T, provider services.EmailProvider) *webhookHandlerFixture {
	t.Helper()

	campaignRepo := testingutil.NewFakeCampaignRepository()
	recipientRepo := testingutil.NewFakeRecipientRepository()
	eventRepo := testingutil.NewFakeEventRepository()
	unsubscribedRepo := testingutil.NewFakeUnsubscribedEmailRepository()
	tokens := services.NewUnsubscribeTokenService("test-secret")

	suppressionFlow := businessflow.NewSuppressionFlow(unsubscribedRepo, campaignRepo, eventRepo, tokens, nil)
	webhookFlow := businessflow.NewWebhookFlow(provider, recipientRepo, eventRepo, campaignRepo, suppressionFlow, nil)
	handler := NewWebhookHandler(webhookFlow, suppressionFlow)

	app := fiber.New()
	app.Post("/api/v1/webhooks/brevo", handler.HandleBrevoWebhook)
	app.Get("/api/v1/unsubscribe/:token", handler.HandleUnsubscribe)

	return &webhookHandlerFixture{
		app:          app,
		campaignRepo: campaignRepo,
		tokens:       tokens,
	}
}

func decodeAck(t *testing.T, body io.Reader) dto.WebhookAckResponse {
	t.Helper()
	var ack dto.WebhookAckResponse
	require.NoError(t, json.NewDecoder(body).Decode(&ack))
	return ack
}

func TestBrevoWebhookAcknowledgesInvalidSignature(t *testing.T) {
	provider := services.NewBrevoProvider(&config.BrevoConfig{WebhookSecret: "hush"})
	f := newWebhookHandlerFixture(t, provider)

	req := httptest.NewRequest("POST", "/api/v1/webhooks/brevo", strings.NewReader(`{"event":"delivered"}`))
	req.Header.Set("X-Webhook-Signature", "wrong")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// rejected deliveries are acked so Brevo does not retry them
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, decodeAck(t, resp.Body).Received)
}

func TestBrevoWebhookAcknowledgesBadPayload(t *testing.T) {
	f := newWebhookHandlerFixture(t, services.NewMockEmailProvider(1000, 50))

	req := httptest.NewRequest("POST", "/api/v1/webhooks/brevo", strings.NewReader("not-json"))

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, decodeAck(t, resp.Body).Received)
}

func TestUnsubscribePageRendersEmail(t *testing.T) {
	ctx := context.Background()
	f := newWebhookHandlerFixture(t, services.NewMockEmailProvider(1000, 50))

	campaign, err := testingutil.SeedCampaign(ctx, f.campaignRepo, 7, "Newsletter", models.CampaignStatusSent)
	require.NoError(t, err)

	token, err := f.tokens.Encode("reader@example.com", campaign.UUID.String())
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/unsubscribe/"+token, nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)

	assert.Contains(t, page, "Unsubscribed Successfully")
	assert.Contains(t, page, "reader@example.com")
	assert.NotContains(t, page, "{{email}}")
	// the CSS percentages come through untouched
	assert.Contains(t, page, "#764ba2 100%")
	assert.NotContains(t, page, "%!")
}

func TestUnsubscribePageRejectsBadToken(t *testing.T) {
	f := newWebhookHandlerFixture(t, services.NewMockEmailProvider(1000, 50))

	req := httptest.NewRequest("GET", "/api/v1/unsubscribe/garbage", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Invalid Link")
}
