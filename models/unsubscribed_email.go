package models

import "time"

// UnsubscribedEmail is a per-institution suppression entry. The
// (institution_id, email) pair is unique; insertion is idempotent and rows
// are only ever removed by explicit administrative deletion.
type UnsubscribedEmail struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	InstitutionID    uint      `gorm:"not null;uniqueIndex:uk_unsubscribed_emails_institution_email" json:"institution_id"`
	Email            string    `gorm:"not null;uniqueIndex:uk_unsubscribed_emails_institution_email" json:"email"`
	SourceCampaignID *uint     `json:"source_campaign_id,omitempty"`
	Reason           *string   `json:"reason,omitempty"`
	IPAddress        *string   `json:"ip_address,omitempty"`
	UserAgent        *string   `json:"user_agent,omitempty"`
	UnsubscribedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_unsubscribed_emails_unsubscribed_at" json:"unsubscribed_at"`
}

// TableName returns the table name for the model
func (UnsubscribedEmail) TableName() string {
	return "unsubscribed_emails"
}

// BeforeCreate is called before creating a new record
func (u *UnsubscribedEmail) BeforeCreate() error {
	if u.UnsubscribedAt.IsZero() {
		u.UnsubscribedAt = time.Now().UTC()
	}
	return nil
}

// UnsubscribedEmailFilter represents filter criteria for suppression entries
type UnsubscribedEmailFilter struct {
	InstitutionID    *uint   `json:"institution_id,omitempty"`
	Email            *string `json:"email,omitempty"`
	SourceCampaignID *uint   `json:"source_campaign_id,omitempty"`
}
