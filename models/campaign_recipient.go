package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// RecipientStatus represents the delivery state of a single ledger entry
type RecipientStatus string

const (
	RecipientStatusQueued RecipientStatus = "queued"
	RecipientStatusSent   RecipientStatus = "sent"
	RecipientStatusFailed RecipientStatus = "failed"
)

// String returns the string representation of the status
func (s RecipientStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientStatusQueued, RecipientStatusSent, RecipientStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientStatus
func (s *RecipientStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecipientStatus(v)
	case []byte:
		*s = RecipientStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientStatus
func (s RecipientStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecipientStatus: %s", s)
	}
	return string(s), nil
}

// CampaignRecipient is one row of a campaign's recipient ledger. Rows are
// materialized in bulk when a send starts and are unique per
// (campaign_id, email).
type CampaignRecipient struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CampaignID        uint            `gorm:"not null;uniqueIndex:uk_campaign_recipients_campaign_email;index:idx_campaign_recipients_campaign_id" json:"campaign_id"`
	ContactID         *uint           `json:"contact_id,omitempty"`
	LeadID            *uint           `json:"lead_id,omitempty"`
	Email             string          `gorm:"not null;uniqueIndex:uk_campaign_recipients_campaign_email;index:idx_campaign_recipients_email" json:"email"`
	Name              *string         `json:"name,omitempty"`
	Status            RecipientStatus `gorm:"type:varchar(16);not null;default:'queued';index:idx_campaign_recipients_status" json:"status"`
	ProviderMessageID *string         `gorm:"index:idx_campaign_recipients_provider_message_id" json:"provider_message_id,omitempty"`
	ErrorMessage      *string         `gorm:"type:text" json:"error_message,omitempty"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Campaign *EmailCampaign `gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE" json:"campaign,omitempty"`
	Contact  *Contact       `gorm:"foreignKey:ContactID;references:ID" json:"contact,omitempty"`
	Lead     *Lead          `gorm:"foreignKey:LeadID;references:ID" json:"lead,omitempty"`
}

// TableName returns the table name for the model
func (CampaignRecipient) TableName() string {
	return "campaign_recipients"
}

// BeforeCreate is called before creating a new record
func (r *CampaignRecipient) BeforeCreate() error {
	if r.Status == "" {
		r.Status = RecipientStatusQueued
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// CampaignRecipientFilter represents filter criteria for ledger entries
type CampaignRecipientFilter struct {
	ID                *uint            `json:"id,omitempty"`
	CampaignID        *uint            `json:"campaign_id,omitempty"`
	Email             *string          `json:"email,omitempty"`
	Status            *RecipientStatus `json:"status,omitempty"`
	ProviderMessageID *string          `json:"provider_message_id,omitempty"`
}
