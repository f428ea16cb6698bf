// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/harborcrm/harbor-backend/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for email campaigns
type CampaignRepository interface {
	Repository[models.EmailCampaign, models.EmailCampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.EmailCampaign, error)
	ByInstitution(ctx context.Context, institutionID uint, filter models.EmailCampaignFilter, limit, offset int) ([]*models.EmailCampaign, error)
	Update(ctx context.Context, campaign *models.EmailCampaign) error
	Delete(ctx context.Context, id uint) error

	// TransitionStatus performs an atomic conditional status update. It returns
	// true only when the row was in one of the expected statuses and this call
	// moved it; concurrent callers racing for the same transition see false.
	TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error)

	// IncrementDeliveryCounters bumps sent/failed aggregates in SQL so
	// concurrent batch workers never lose updates.
	IncrementDeliveryCounters(ctx context.Context, id uint, sentDelta, failedDelta int) error

	// IncrementEventCounter bumps the aggregate column matching the event type,
	// if the type has one.
	IncrementEventCounter(ctx context.Context, id uint, eventType models.EmailEventType) error

	// OverwriteCounters replaces every cached aggregate with freshly
	// recomputed values.
	OverwriteCounters(ctx context.Context, id uint, counters models.CampaignCounters) error

	// DueScheduled lists scheduled campaigns whose scheduled_at has passed.
	DueScheduled(ctx context.Context, now time.Time) ([]*models.EmailCampaign, error)

	// ListByStatus lists campaigns in the given status, oldest first.
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.EmailCampaign, error)
}

// RecipientRepository defines operations for the campaign recipient ledger
type RecipientRepository interface {
	Repository[models.CampaignRecipient, models.CampaignRecipientFilter]

	// ReplaceForCampaign deletes any prior ledger for the campaign and
	// inserts the given snapshot in its place.
	ReplaceForCampaign(ctx context.Context, campaignID uint, recipients []*models.CampaignRecipient) error

	// NextQueuedBatch returns up to limit queued entries, oldest first.
	NextQueuedBatch(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignRecipient, error)

	MarkSent(ctx context.Context, id uint, providerMessageID *string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uint, errorMessage string) error

	CountByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int64, error)
	ByProviderMessageID(ctx context.Context, messageID string) (*models.CampaignRecipient, error)

	// LatestByEmail returns the most recently created ledger entry for the
	// address across all campaigns, used to correlate webhook events that
	// carry no message ID.
	LatestByEmail(ctx context.Context, email string) (*models.CampaignRecipient, error)

	ListByCampaign(ctx context.Context, campaignID uint, status *models.RecipientStatus, limit, offset int) ([]*models.CampaignRecipient, error)
}

// EventRepository defines operations for the append-only email event trail
type EventRepository interface {
	Repository[models.EmailEvent, models.EmailEventFilter]

	// CountsByType groups the campaign's events by type.
	CountsByType(ctx context.Context, campaignID uint) (map[models.EmailEventType]int64, error)

	// RecentByCampaign returns the newest events first, up to limit.
	RecentByCampaign(ctx context.Context, campaignID uint, limit int) ([]*models.EmailEvent, error)
}

// UnsubscribedEmailRepository defines operations for the suppression list
type UnsubscribedEmailRepository interface {
	Repository[models.UnsubscribedEmail, models.UnsubscribedEmailFilter]

	// Suppress inserts an entry, silently succeeding when the address is
	// already suppressed for the institution.
	Suppress(ctx context.Context, entry *models.UnsubscribedEmail) error

	ByEmail(ctx context.Context, institutionID uint, email string) (*models.UnsubscribedEmail, error)

	// EmailSet returns every suppressed address for the institution as a
	// lowercased lookup set.
	EmailSet(ctx context.Context, institutionID uint) (map[string]struct{}, error)

	ListByInstitution(ctx context.Context, institutionID uint, search string, limit, offset int) ([]*models.UnsubscribedEmail, int64, error)
	Remove(ctx context.Context, institutionID uint, email string) (bool, error)
}

// ContactRepository defines read operations over CRM contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]

	// ByAudience lists contacts matching the audience criteria that carry a
	// non-empty email address.
	ByAudience(ctx context.Context, institutionID uint, criteria models.AudienceCriteria) ([]*models.Contact, error)
}

// LeadRepository defines read operations over CRM leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]

	// ByAudience lists leads matching the audience criteria that carry a
	// non-empty email address.
	ByAudience(ctx context.Context, institutionID uint, criteria models.AudienceCriteria) ([]*models.Lead, error)
}
