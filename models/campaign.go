package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CampaignStatus represents the lifecycle status of an email campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// CampaignProvider identifies the delivery vendor bound to a campaign
type CampaignProvider string

const (
	CampaignProviderBrevo  CampaignProvider = "brevo"
	CampaignProviderSES    CampaignProvider = "ses"
	CampaignProviderResend CampaignProvider = "resend"
)

// Valid checks if the provider is valid
func (p CampaignProvider) Valid() bool {
	switch p {
	case CampaignProviderBrevo, CampaignProviderSES, CampaignProviderResend:
		return true
	default:
		return false
	}
}

// AudienceSource selects which collaborator the audience resolver queries
type AudienceSource string

const (
	AudienceSourceContacts AudienceSource = "contacts"
	AudienceSourceLeads    AudienceSource = "leads"
)

// Valid checks if the audience source is valid
func (s AudienceSource) Valid() bool {
	return s == AudienceSourceContacts || s == AudienceSourceLeads
}

// AudienceCriteria holds the source-specific filter criteria
type AudienceCriteria struct {
	Status        []string `json:"status,omitempty"`
	Priority      []string `json:"priority,omitempty"`
	LeadSource    []string `json:"leadSource,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CreatedAtFrom *string  `json:"createdAtFrom,omitempty"`
	CreatedAtTo   *string  `json:"createdAtTo,omitempty"`
}

// AudienceFilter is the declarative audience description persisted as jsonb
type AudienceFilter struct {
	Source  AudienceSource   `json:"source"`
	Filters AudienceCriteria `json:"filters"`
}

// Value implements the driver.Valuer interface for AudienceFilter
func (f AudienceFilter) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for AudienceFilter
func (f *AudienceFilter) Scan(value any) error {
	if value == nil {
		*f = AudienceFilter{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceFilter", value)
	}

	return json.Unmarshal(bytes, f)
}

// EmailCampaign represents an email campaign in the database
type EmailCampaign struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uk_email_campaigns_uuid" json:"uuid"`
	InstitutionID uint             `gorm:"not null;index:idx_email_campaigns_institution_id" json:"institution_id"`
	CreatedByID   *uint            `gorm:"index:idx_email_campaigns_created_by" json:"created_by_id,omitempty"`
	Name          string           `gorm:"not null" json:"name"`
	Subject       string           `gorm:"not null" json:"subject"`
	PreviewText   *string          `json:"preview_text,omitempty"`
	SenderName    string           `gorm:"not null" json:"sender_name"`
	SenderEmail   string           `gorm:"not null" json:"sender_email"`
	HTMLContent   string           `gorm:"type:text;not null" json:"html_content"`
	Status        CampaignStatus   `gorm:"type:varchar(16);not null;default:'draft';index:idx_email_campaigns_status" json:"status"`
	Provider      CampaignProvider `gorm:"type:varchar(16);not null;default:'brevo'" json:"provider"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
	Audience      AudienceFilter   `gorm:"column:audience_filters;type:jsonb;not null" json:"audience_filters"`
	Tags          pq.StringArray   `gorm:"type:text[]" json:"tags,omitempty"`

	// Cached aggregate counters
	TotalRecipients  int `gorm:"not null;default:0" json:"total_recipients"`
	SentCount        int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount      int `gorm:"not null;default:0" json:"failed_count"`
	OpenCount        int `gorm:"not null;default:0" json:"open_count"`
	ClickCount       int `gorm:"not null;default:0" json:"click_count"`
	BounceCount      int `gorm:"not null;default:0" json:"bounce_count"`
	UnsubscribeCount int `gorm:"not null;default:0" json:"unsubscribe_count"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_email_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	CreatedBy   *User        `gorm:"foreignKey:CreatedByID;references:ID" json:"created_by,omitempty"`
	Institution *Institution `gorm:"foreignKey:InstitutionID;references:ID" json:"institution,omitempty"`
}

// TableName returns the table name for the model
func (EmailCampaign) TableName() string {
	return "email_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *EmailCampaign) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.Provider == "" {
		c.Provider = CampaignProviderBrevo
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *EmailCampaign) BeforeUpdate() error {
	now := time.Now().UTC()
	c.UpdatedAt = &now
	return nil
}

// IsEditable checks if the campaign content can still change
func (c *EmailCampaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// IsDeletable checks if the campaign can be deleted
func (c *EmailCampaign) IsDeletable() bool {
	return c.Status != CampaignStatusSending
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *EmailCampaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusDraft ||
			newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusSending
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusDraft ||
			newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusSending
	case CampaignStatusSending:
		return newStatus == CampaignStatusSent ||
			newStatus == CampaignStatusFailed
	default:
		// sent and failed are terminal
		return false
	}
}

// SendableStatuses lists the statuses a send may be accepted from. The actual
// gate is an atomic conditional update in the repository; sharing the list
// keeps validation messages and the SQL guard consistent.
func SendableStatuses() []CampaignStatus {
	return []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled}
}

// CampaignCounters is the full set of cached aggregates recomputed from the
// recipient ledger and the event trail
type CampaignCounters struct {
	TotalRecipients  int `json:"total_recipients"`
	SentCount        int `json:"sent_count"`
	FailedCount      int `json:"failed_count"`
	OpenCount        int `json:"open_count"`
	ClickCount       int `json:"click_count"`
	BounceCount      int `json:"bounce_count"`
	UnsubscribeCount int `json:"unsubscribe_count"`
}

// EmailCampaignFilter represents filter criteria for email campaigns
type EmailCampaignFilter struct {
	ID            *uint             `json:"id,omitempty"`
	UUID          *uuid.UUID        `json:"uuid,omitempty"`
	InstitutionID *uint             `json:"institution_id,omitempty"`
	CreatedByID   *uint             `json:"created_by_id,omitempty"`
	Status        *CampaignStatus   `json:"status,omitempty"`
	Provider      *CampaignProvider `json:"provider,omitempty"`
	Name          *string           `json:"name,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
	ScheduledTo   *time.Time        `json:"scheduled_to,omitempty"`
}
