// Package services provides external service integrations and technical concerns like delivery providers and tokens
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/utils"
)

// SendRequest represents one outbound email handed to a provider
type SendRequest struct {
	To             string  `json:"to"`
	ToName         *string `json:"to_name,omitempty"`
	Subject        string  `json:"subject"`
	HTMLContent    string  `json:"html_content"`
	SenderName     string  `json:"sender_name"`
	SenderEmail    string  `json:"sender_email"`
	UnsubscribeURL string  `json:"unsubscribe_url,omitempty"`
}

// SendResult represents the per-recipient outcome of a batch send
type SendResult struct {
	To        string  `json:"to"`
	Success   bool    `json:"success"`
	MessageID *string `json:"message_id,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// WebhookEvent is a provider-agnostic delivery event parsed from a webhook payload
type WebhookEvent struct {
	Email     string               `json:"email"`
	EventType models.EmailEventType `json:"event_type"`
	MessageID *string              `json:"message_id,omitempty"`
	Timestamp *int64               `json:"timestamp,omitempty"`
	Raw       map[string]any       `json:"raw,omitempty"`
}

// EmailProvider abstracts a transactional email vendor. Implementations pace
// their own per-message delay inside SendBatch; the caller paces batches.
type EmailProvider interface {
	Name() string
	SendEmail(ctx context.Context, req SendRequest) (*SendResult, error)
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
	ParseWebhook(payload []byte) (*WebhookEvent, error)
	VerifyWebhookSignature(signature string) bool
	DailyLimit() int
	BatchSize() int
}

// MockEmailProvider is an in-memory provider used in tests and local runs.
// Addresses added to FailAddresses fail deterministically; SetBatchError
// simulates a transport-level outage.
type MockEmailProvider struct {
	mu            sync.Mutex
	Sent          []SendRequest
	FailAddresses map[string]string
	batchErr      error
	dailyLimit    int
	batchSize     int
	nextMessageID int
}

// NewMockEmailProvider creates a mock provider with the given pacing limits
func NewMockEmailProvider(dailyLimit, batchSize int) *MockEmailProvider {
	return &MockEmailProvider{
		FailAddresses: make(map[string]string),
		dailyLimit:    dailyLimit,
		batchSize:     batchSize,
	}
}

func (m *MockEmailProvider) Name() string { return "mock" }

func (m *MockEmailProvider) DailyLimit() int { return m.dailyLimit }

func (m *MockEmailProvider) BatchSize() int { return m.batchSize }

// SendEmail records the request and returns a synthetic message ID
func (m *MockEmailProvider) SendEmail(_ context.Context, req SendRequest) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reason, ok := m.FailAddresses[utils.NormalizeEmail(req.To)]; ok {
		return &SendResult{To: req.To, Success: false, Error: &reason}, nil
	}

	m.Sent = append(m.Sent, req)
	m.nextMessageID++
	messageID := fmt.Sprintf("mock-%d", m.nextMessageID)

	return &SendResult{To: req.To, Success: true, MessageID: &messageID}, nil
}

// SetBatchError makes every subsequent SendBatch fail at the transport level
// until cleared with nil
func (m *MockEmailProvider) SetBatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchErr = err
}

// SendBatch sends sequentially, mirroring real providers
func (m *MockEmailProvider) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	m.mu.Lock()
	batchErr := m.batchErr
	m.mu.Unlock()
	if batchErr != nil {
		return nil, batchErr
	}

	results := make([]SendResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := m.SendEmail(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// ParseWebhook decodes a mock payload in the Brevo shape
func (m *MockEmailProvider) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	return parseBrevoWebhook(payload)
}

// VerifyWebhookSignature always accepts for the mock
func (m *MockEmailProvider) VerifyWebhookSignature(string) bool { return true }

// SentCount returns how many requests the mock accepted
func (m *MockEmailProvider) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
