package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/harborcrm/harbor-backend/app/dto"
	"github.com/harborcrm/harbor-backend/app/services"
	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/repository"
	"github.com/harborcrm/harbor-backend/utils"
	"gorm.io/gorm"
)

// WebhookFlow ingests provider delivery events
type WebhookFlow interface {
	// HandleEvent processes one provider webhook delivery. Events that
	// cannot be correlated to a recipient are acknowledged and dropped so
	// the provider does not retry them forever.
	HandleEvent(ctx context.Context, payload []byte, signature string) (*dto.WebhookAckResponse, error)
}

// WebhookFlowImpl implements provider webhook ingestion
type WebhookFlowImpl struct {
	provider        services.EmailProvider
	recipientRepo   repository.RecipientRepository
	eventRepo       repository.EventRepository
	campaignRepo    repository.CampaignRepository
	suppressionFlow SuppressionFlow
	db              *gorm.DB
}

// NewWebhookFlow creates a new webhook ingestion flow instance
func NewWebhookFlow(
	provider services.EmailProvider,
	recipientRepo repository.RecipientRepository,
	eventRepo repository.EventRepository,
	campaignRepo repository.CampaignRepository,
	suppressionFlow SuppressionFlow,
	db *gorm.DB,
) WebhookFlow {
	return &WebhookFlowImpl{
		provider:        provider,
		recipientRepo:   recipientRepo,
		eventRepo:       eventRepo,
		campaignRepo:    campaignRepo,
		suppressionFlow: suppressionFlow,
		db:              db,
	}
}

// correlate finds the recipient a webhook event belongs to: the provider
// message id is authoritative, the address is the fallback, newest entry wins
func (s *WebhookFlowImpl) correlate(ctx context.Context, event *services.WebhookEvent) (*models.CampaignRecipient, error) {
	if event.MessageID != nil && *event.MessageID != "" {
		recipient, err := s.recipientRepo.ByProviderMessageID(ctx, *event.MessageID)
		if err != nil {
			return nil, err
		}
		if recipient != nil {
			return recipient, nil
		}
	}
	return s.recipientRepo.LatestByEmail(ctx, event.Email)
}

// HandleEvent verifies, parses, correlates, and records one webhook delivery
func (s *WebhookFlowImpl) HandleEvent(ctx context.Context, payload []byte, signature string) (*dto.WebhookAckResponse, error) {
	if !s.provider.VerifyWebhookSignature(signature) {
		return &dto.WebhookAckResponse{Received: false},
			NewBusinessError("WEBHOOK_SIGNATURE_INVALID", "Webhook signature verification failed", ErrWebhookSignatureInvalid)
	}

	event, err := s.provider.ParseWebhook(payload)
	if err != nil {
		return &dto.WebhookAckResponse{Received: false},
			NewBusinessError("WEBHOOK_PAYLOAD_INVALID", "Webhook payload could not be parsed", ErrWebhookPayloadInvalid)
	}

	recipient, err := s.correlate(ctx, event)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_PROCESSING_FAILED", "Failed to correlate webhook event", err)
	}
	if recipient == nil {
		// Unmatched events are acknowledged so the provider stops retrying
		log.Printf("[WARN] webhook event %s for %s matched no recipient", event.EventType, event.Email)
		return &dto.WebhookAckResponse{Received: true}, nil
	}

	eventTime := utils.UTCNow()
	if event.Timestamp != nil {
		eventTime = time.Unix(*event.Timestamp, 0).UTC()
	}

	record := &models.EmailEvent{
		CampaignID:        recipient.CampaignID,
		ContactID:         recipient.ContactID,
		LeadID:            recipient.LeadID,
		Email:             utils.NormalizeEmail(event.Email),
		EventType:         event.EventType,
		ProviderMessageID: event.MessageID,
		Metadata:          models.EventMetadata(event.Raw),
		EventTimestamp:    eventTime,
		CreatedAt:         utils.UTCNow(),
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.eventRepo.Save(txCtx, record); err != nil {
			return err
		}
		return s.campaignRepo.IncrementEventCounter(txCtx, recipient.CampaignID, event.EventType)
	})
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_PROCESSING_FAILED", "Failed to record webhook event", err)
	}

	if event.EventType == models.EmailEventUnsubscribe {
		campaign, err := s.campaignRepo.ByID(ctx, recipient.CampaignID)
		if err != nil {
			return nil, NewBusinessError("WEBHOOK_PROCESSING_FAILED", "Failed to resolve campaign for unsubscribe", err)
		}
		if campaign != nil {
			campaignID := campaign.ID
			err = s.suppressionFlow.ProcessUnsubscribe(ctx, campaign.InstitutionID, event.Email, &campaignID, "provider_webhook", nil)
			if err != nil {
				return nil, err
			}
		}
	}

	return &dto.WebhookAckResponse{Received: true}, nil
}
