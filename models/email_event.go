package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EmailEventType represents a provider-reported delivery event kind
type EmailEventType string

const (
	EmailEventSent        EmailEventType = "sent"
	EmailEventDelivered   EmailEventType = "delivered"
	EmailEventOpen        EmailEventType = "open"
	EmailEventClick       EmailEventType = "click"
	EmailEventBounce      EmailEventType = "bounce"
	EmailEventSoftBounce  EmailEventType = "soft_bounce"
	EmailEventHardBounce  EmailEventType = "hard_bounce"
	EmailEventSpam        EmailEventType = "spam"
	EmailEventUnsubscribe EmailEventType = "unsubscribe"
	EmailEventError       EmailEventType = "error"
)

// String returns the string representation of the event type
func (t EmailEventType) String() string {
	return string(t)
}

// Valid checks if the event type is valid
func (t EmailEventType) Valid() bool {
	switch t {
	case EmailEventSent, EmailEventDelivered, EmailEventOpen, EmailEventClick,
		EmailEventBounce, EmailEventSoftBounce, EmailEventHardBounce,
		EmailEventSpam, EmailEventUnsubscribe, EmailEventError:
		return true
	default:
		return false
	}
}

// IsBounce reports whether the event counts toward the bounce aggregate
func (t EmailEventType) IsBounce() bool {
	return t == EmailEventBounce || t == EmailEventSoftBounce || t == EmailEventHardBounce
}

// Scan implements the sql.Scanner interface for EmailEventType
func (t *EmailEventType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = EmailEventType(v)
	case []byte:
		*t = EmailEventType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into EmailEventType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for EmailEventType
func (t EmailEventType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid EmailEventType: %s", t)
	}
	return string(t), nil
}

// NormalizeEventType maps an arbitrary event name to a closed event type.
// Unknown names deliberately map to EmailEventError instead of being dropped
// so the audit trail never loses an occurrence.
func NormalizeEventType(name string) EmailEventType {
	t := EmailEventType(name)
	if t.Valid() {
		return t
	}
	return EmailEventError
}

// EventMetadata stores the raw provider payload alongside the normalized event
type EventMetadata map[string]any

// Value implements the driver.Valuer interface for EventMetadata
func (m EventMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for EventMetadata
func (m *EventMetadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into EventMetadata", value)
	}

	return json.Unmarshal(bytes, m)
}

// EmailEvent is an append-only record of a provider-reported occurrence.
// Rows are never updated or deleted; they are the audit trail behind the
// campaign's cached counters.
type EmailEvent struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	CampaignID        uint           `gorm:"not null;index:idx_email_events_campaign_type" json:"campaign_id"`
	ContactID         *uint          `json:"contact_id,omitempty"`
	LeadID            *uint          `json:"lead_id,omitempty"`
	Email             string         `gorm:"not null;index:idx_email_events_email" json:"email"`
	EventType         EmailEventType `gorm:"type:varchar(16);not null;index:idx_email_events_campaign_type" json:"event_type"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"`
	Metadata          EventMetadata  `gorm:"type:jsonb" json:"metadata,omitempty"`
	EventTimestamp    time.Time      `gorm:"not null;index:idx_email_events_event_timestamp" json:"event_timestamp"`
	CreatedAt         time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Campaign *EmailCampaign `gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (EmailEvent) TableName() string {
	return "email_events"
}

// BeforeCreate is called before creating a new record
func (e *EmailEvent) BeforeCreate() error {
	if e.EventTimestamp.IsZero() {
		e.EventTimestamp = time.Now().UTC()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// EmailEventFilter represents filter criteria for email events
type EmailEventFilter struct {
	CampaignID *uint           `json:"campaign_id,omitempty"`
	Email      *string         `json:"email,omitempty"`
	EventType  *EmailEventType `json:"event_type,omitempty"`
	After      *time.Time      `json:"after,omitempty"`
	Before     *time.Time      `json:"before,omitempty"`
}
