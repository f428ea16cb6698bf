package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/models"
)

func TestParseBrevoWebhookEventMapping(t *testing.T) {
	tests := []struct {
		event    string
		expected models.EmailEventType
	}{
		{"sent", models.EmailEventSent},
		{"request", models.EmailEventSent},
		{"delivered", models.EmailEventDelivered},
		{"opened", models.EmailEventOpen},
		{"unique_opened", models.EmailEventOpen},
		{"click", models.EmailEventClick},
		{"hard_bounce", models.EmailEventHardBounce},
		{"soft_bounce", models.EmailEventSoftBounce},
		{"deferred", models.EmailEventSoftBounce},
		{"spam", models.EmailEventSpam},
		{"unsubscribed", models.EmailEventUnsubscribe},
		{"blocked", models.EmailEventError},
		{"something_new", models.EmailEventError},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			payload := []byte(`{"event":"` + tt.event + `","email":"user@example.com","message-id":"<abc@smtp>","ts":1700000000}`)
			event, err := parseBrevoWebhook(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, event.EventType)
			assert.Equal(t, "user@example.com", event.Email)
			require.NotNil(t, event.MessageID)
			assert.Equal(t, "<abc@smtp>", *event.MessageID)
			require.NotNil(t, event.Timestamp)
			assert.EqualValues(t, 1700000000, *event.Timestamp)
		})
	}
}

func TestParseBrevoWebhookRejectsIncomplete(t *testing.T) {
	_, err := parseBrevoWebhook([]byte(`{"email":"user@example.com"}`))
	assert.Error(t, err)

	_, err = parseBrevoWebhook([]byte(`{"event":"delivered"}`))
	assert.Error(t, err)

	_, err = parseBrevoWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseBrevoWebhookDateFallback(t *testing.T) {
	payload := []byte(`{"event":"delivered","email":"user@example.com","date":"2026-01-15T10:30:00Z"}`)
	event, err := parseBrevoWebhook(payload)
	require.NoError(t, err)
	require.NotNil(t, event.Timestamp)
	assert.EqualValues(t, 1768473000, *event.Timestamp)
}

func TestInjectUnsubscribeLink(t *testing.T) {
	url := "https://crm.example.com/api/v1/unsubscribe/abc"

	t.Run("placeholder substitution", func(t *testing.T) {
		html := `<p>Bye: <a href="{{unsubscribe_url}}">here</a></p>`
		out := InjectUnsubscribeLink(html, url)
		assert.NotContains(t, out, "{{unsubscribe_url}}")
		assert.Contains(t, out, url)
	})

	t.Run("footer before closing body", func(t *testing.T) {
		html := `<html><body><p>Hello</p></body></html>`
		out := InjectUnsubscribeLink(html, url)
		assert.Contains(t, out, url)
		assert.Less(t, strings.Index(out, url), strings.Index(out, "</body>"))
	})

	t.Run("footer appended without body tag", func(t *testing.T) {
		html := `<p>Hello</p>`
		out := InjectUnsubscribeLink(html, url)
		assert.True(t, strings.HasPrefix(out, html))
		assert.Contains(t, out, url)
	})

	t.Run("no url leaves content alone", func(t *testing.T) {
		html := `<p>Hello</p>`
		assert.Equal(t, html, InjectUnsubscribeLink(html, ""))
	})
}

func TestBrevoWebhookSignatureVerification(t *testing.T) {
	withSecret := NewBrevoProvider(&config.BrevoConfig{WebhookSecret: "hush"})
	assert.True(t, withSecret.VerifyWebhookSignature("hush"))
	assert.False(t, withSecret.VerifyWebhookSignature("wrong"))
	assert.False(t, withSecret.VerifyWebhookSignature(""))

	withoutSecret := NewBrevoProvider(&config.BrevoConfig{})
	assert.True(t, withoutSecret.VerifyWebhookSignature("anything"))
}

func TestMockEmailProvider(t *testing.T) {
	ctx := context.Background()
	mock := NewMockEmailProvider(100, 10)
	mock.FailAddresses["bad@example.com"] = "mailbox full"

	results, err := mock.SendBatch(ctx, []SendRequest{
		{To: "good@example.com", Subject: "hi"},
		{To: "bad@example.com", Subject: "hi"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	require.NotNil(t, results[0].MessageID)
	assert.Contains(t, *results[0].MessageID, "mock-")

	assert.False(t, results[1].Success)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, "mailbox full", *results[1].Error)

	assert.Equal(t, 1, mock.SentCount())
}
