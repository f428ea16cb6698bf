package handlers

import (
	"context"
	"html"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/harborcrm/harbor-backend/app/dto"
	businessflow "github.com/harborcrm/harbor-backend/business_flow"
)

const unsubscribeSuccessPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Unsubscribed</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  display: flex;
  align-items: center;
  justify-content: center;
  padding: 20px;
}
.card {
  background: white;
  border-radius: 16px;
  padding: 48px;
  max-width: 480px;
  text-align: center;
  box-shadow: 0 20px 60px rgba(0, 0, 0, 0.2);
}
h1 { color: #1f2937; font-size: 24px; margin-bottom: 12px; }
p { color: #6b7280; font-size: 16px; line-height: 1.6; }
.email { color: #374151; font-weight: 600; }
</style>
</head>
<body>
<div class="card">
  <h1>Unsubscribed Successfully</h1>
  <p>
    You have been unsubscribed from our mailing list.
    <br><br>
    <span class="email">{{email}}</span>
    <br><br>
    You will no longer receive marketing emails from us.
  </p>
</div>
</body>
</html>`

const unsubscribeErrorPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Error</title>
<style>
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  background: #f3f4f6;
  min-height: 100vh;
  display: flex;
  align-items: center;
  justify-content: center;
  padding: 20px;
}
.card {
  background: white;
  border-radius: 16px;
  padding: 48px;
  max-width: 480px;
  text-align: center;
  box-shadow: 0 4px 24px rgba(0, 0, 0, 0.1);
}
h1 { color: #ef4444; margin-bottom: 12px; }
p { color: #6b7280; }
</style>
</head>
<body>
<div class="card">
  <h1>Invalid Link</h1>
  <p>This unsubscribe link is invalid or has expired.</p>
</div>
</body>
</html>`

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	HandleBrevoWebhook(c fiber.Ctx) error
	HandleUnsubscribe(c fiber.Ctx) error
}

// WebhookHandler handles provider webhook and unsubscribe HTTP requests.
// Both endpoints are public: the webhook is authenticated by its signature,
// the unsubscribe link by its signed token.
type WebhookHandler struct {
	webhookFlow     businessflow.WebhookFlow
	suppressionFlow businessflow.SuppressionFlow
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow, suppressionFlow businessflow.SuppressionFlow) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow:     webhookFlow,
		suppressionFlow: suppressionFlow,
	}
}

func (h *WebhookHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, businessflow.CancelFuncKey, cancel)
	return ctx
}

// HandleBrevoWebhook ingests Brevo delivery events
// @Summary Handle Brevo Webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookAckResponse "Event processed"
// @Router /api/v1/webhooks/brevo [post]
func (h *WebhookHandler) HandleBrevoWebhook(c fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("X-Webhook-Signature")

	ack, err := h.webhookFlow.HandleEvent(h.createRequestContext(c), payload, signature)
	if err != nil {
		// Rejected deliveries (bad signature, unparseable payload) are
		// acknowledged with received:false so the provider does not retry them
		if businessflow.IsWebhookSignatureInvalid(err) || businessflow.IsWebhookPayloadInvalid(err) {
			return c.Status(fiber.StatusOK).JSON(dto.WebhookAckResponse{Received: false})
		}
		log.Println("Webhook processing failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.WebhookAckResponse{Received: false})
	}

	// Always 200 for processed events so the provider stops retrying
	return c.Status(fiber.StatusOK).JSON(ack)
}

// HandleUnsubscribe processes a click on a signed unsubscribe link and
// renders a confirmation page
// @Summary Handle Unsubscribe Link
// @Tags Webhooks
// @Produce html
// @Param token path string true "Signed unsubscribe token"
// @Success 200 {string} string "Confirmation page"
// @Failure 400 {string} string "Invalid link page"
// @Router /api/v1/unsubscribe/{token} [get]
func (h *WebhookHandler) HandleUnsubscribe(c fiber.Ctx) error {
	token := c.Params("token")
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	email, err := h.suppressionFlow.HandleUnsubscribeToken(h.createRequestContext(c), token, metadata)
	if err != nil {
		if !businessflow.IsUnsubscribeTokenInvalid(err) && !businessflow.IsCampaignNotFound(err) {
			log.Println("Unsubscribe handling failed", err)
		}
		c.Type("html")
		return c.Status(fiber.StatusBadRequest).SendString(unsubscribeErrorPage)
	}

	c.Type("html")
	// The page template holds literal % signs in its CSS, so it is filled by
	// substitution rather than a format string
	page := strings.Replace(unsubscribeSuccessPage, "{{email}}", html.EscapeString(email), 1)
	return c.SendString(page)
}
