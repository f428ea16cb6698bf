package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/models"
)

// brevoEventTypes maps Brevo webhook event names to the closed internal set.
// Unknown names fall through to models.NormalizeEventType.
var brevoEventTypes = map[string]models.EmailEventType{
	"sent":         models.EmailEventSent,
	"request":      models.EmailEventSent,
	"delivered":    models.EmailEventDelivered,
	"opened":       models.EmailEventOpen,
	"unique_opened": models.EmailEventOpen,
	"click":        models.EmailEventClick,
	"hard_bounce":  models.EmailEventHardBounce,
	"soft_bounce":  models.EmailEventSoftBounce,
	"spam":         models.EmailEventSpam,
	"unsubscribed": models.EmailEventUnsubscribe,
	"blocked":      models.EmailEventError,
	"deferred":     models.EmailEventSoftBounce,
	"error":        models.EmailEventError,
}

// BrevoProvider sends transactional email through the Brevo SMTP API
type BrevoProvider struct {
	cfg    *config.BrevoConfig
	client *http.Client
}

// NewBrevoProvider creates a new Brevo provider instance
func NewBrevoProvider(cfg *config.BrevoConfig) *BrevoProvider {
	return &BrevoProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (p *BrevoProvider) Name() string { return string(models.CampaignProviderBrevo) }

func (p *BrevoProvider) DailyLimit() int { return p.cfg.DailyLimit }

func (p *BrevoProvider) BatchSize() int { return p.cfg.BatchSize }

// brevoSendPayload is the request body for POST /smtp/email
type brevoSendPayload struct {
	Sender      brevoAddress      `json:"sender"`
	To          []brevoAddress    `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

// SendEmail sends a single message. Delivery failures are reported in the
// result, not as an error; errors are reserved for request marshalling
// problems and context cancellation.
func (p *BrevoProvider) SendEmail(ctx context.Context, req SendRequest) (*SendResult, error) {
	toName := req.To
	if req.ToName != nil && *req.ToName != "" {
		toName = *req.ToName
	}

	payload := brevoSendPayload{
		Sender:      brevoAddress{Name: req.SenderName, Email: req.SenderEmail},
		To:          []brevoAddress{{Name: toName, Email: req.To}},
		Subject:     req.Subject,
		HTMLContent: InjectUnsubscribeLink(req.HTMLContent, req.UnsubscribeURL),
	}
	if req.UnsubscribeURL != "" {
		payload.Headers = map[string]string{
			"List-Unsubscribe": fmt.Sprintf("<%s>", req.UnsubscribeURL),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Brevo send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/smtp/email", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create Brevo request: %w", err)
	}
	httpReq.Header.Set("api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errMsg := err.Error()
		return &SendResult{To: req.To, Success: false, Error: &errMsg}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var parsed brevoSendResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := parsed.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &SendResult{To: req.To, Success: false, Error: &errMsg}, nil
	}

	var messageID *string
	if parsed.MessageID != "" {
		messageID = &parsed.MessageID
	}

	return &SendResult{To: req.To, Success: true, MessageID: messageID}, nil
}

// SendBatch sends sequentially with a small delay between messages. Brevo's
// transactional API has no true batch endpoint.
func (p *BrevoProvider) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))

	for i, req := range reqs {
		res, err := p.SendEmail(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, *res)

		if i < len(reqs)-1 && p.cfg.SendDelay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(p.cfg.SendDelay):
			}
		}
	}

	return results, nil
}

// brevoWebhookPayload is the shape of Brevo webhook POSTs
type brevoWebhookPayload struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	MessageID string `json:"message-id"`
	Date      string `json:"date"`
	TS        int64  `json:"ts"`
}

// parseBrevoWebhook decodes a Brevo webhook body into a provider-agnostic event
func parseBrevoWebhook(payload []byte) (*WebhookEvent, error) {
	var body brevoWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if body.Email == "" || body.Event == "" {
		return nil, fmt.Errorf("webhook payload missing event or email")
	}

	eventType, ok := brevoEventTypes[strings.ToLower(body.Event)]
	if !ok {
		eventType = models.NormalizeEventType(body.Event)
	}

	var raw map[string]any
	_ = json.Unmarshal(payload, &raw)

	event := &WebhookEvent{
		Email:     body.Email,
		EventType: eventType,
		Raw:       raw,
	}
	if body.MessageID != "" {
		event.MessageID = &body.MessageID
	}
	if body.TS > 0 {
		event.Timestamp = &body.TS
	} else if body.Date != "" {
		if t, err := time.Parse(time.RFC3339, body.Date); err == nil {
			ts := t.Unix()
			event.Timestamp = &ts
		}
	}

	return event, nil
}

// ParseWebhook decodes a Brevo webhook body
func (p *BrevoProvider) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	return parseBrevoWebhook(payload)
}

// VerifyWebhookSignature compares the X-Webhook-Secret header against the
// configured secret. Without a configured secret every webhook is accepted,
// which only logs a warning to keep early setups working.
func (p *BrevoProvider) VerifyWebhookSignature(signature string) bool {
	if p.cfg.WebhookSecret == "" {
		log.Println("[WARN] BREVO_WEBHOOK_SECRET not configured, accepting webhook without verification")
		return true
	}
	return signature == p.cfg.WebhookSecret
}

// InjectUnsubscribeLink substitutes the {{unsubscribe_url}} placeholder, or
// appends an unsubscribe footer before </body> when the template has none
func InjectUnsubscribeLink(html, unsubscribeURL string) string {
	if unsubscribeURL == "" {
		return html
	}

	if strings.Contains(html, "{{unsubscribe_url}}") {
		return strings.ReplaceAll(html, "{{unsubscribe_url}}", unsubscribeURL)
	}

	footer := fmt.Sprintf(`
<div style="margin-top: 40px; padding-top: 20px; border-top: 1px solid #e0e0e0; text-align: center; font-size: 12px; color: #666;">
  <p>You received this email because you are subscribed to our mailing list.</p>
  <p><a href="%s" style="color: #666; text-decoration: underline;">Unsubscribe from this list</a></p>
</div>`, unsubscribeURL)

	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", footer+"</body>", 1)
	}

	return html + footer
}
