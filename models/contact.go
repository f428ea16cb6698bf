package models

import "time"

// ContactPriority levels used by audience filtering
const (
	ContactPriorityHigh   = "High"
	ContactPriorityMedium = "Medium"
	ContactPriorityLow    = "Low"
)

// Contact is a tenant-scoped CRM contact. The campaign engine only reads
// contacts; full contact management lives outside this subsystem.
type Contact struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	InstitutionID uint       `gorm:"not null;index:idx_contacts_institution_id" json:"institution_id"`
	Name          string     `gorm:"not null" json:"name"`
	Email         *string    `gorm:"index:idx_contacts_email" json:"email,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Priority      *string    `gorm:"index:idx_contacts_priority" json:"priority,omitempty"`
	Company       *string    `json:"company,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_contacts_created_at" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Contact) TableName() string {
	return "contacts"
}

// ContactFilter represents audience filter criteria for contacts
type ContactFilter struct {
	InstitutionID *uint      `json:"institution_id,omitempty"`
	Priority      []string   `json:"priority,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
