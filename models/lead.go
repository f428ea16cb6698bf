package models

import "time"

// Lead status values used by audience filtering
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// Lead is a tenant-scoped sales lead. Like contacts, leads are read-only
// collaborators from the campaign engine's point of view.
type Lead struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	InstitutionID uint       `gorm:"not null;index:idx_leads_institution_id" json:"institution_id"`
	Name          string     `gorm:"not null" json:"name"`
	Email         *string    `gorm:"index:idx_leads_email" json:"email,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Status        *string    `gorm:"index:idx_leads_status" json:"status,omitempty"`
	Source        *string    `gorm:"index:idx_leads_source" json:"source,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_leads_created_at" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Lead) TableName() string {
	return "leads"
}

// LeadFilter represents audience filter criteria for leads
type LeadFilter struct {
	InstitutionID *uint      `json:"institution_id,omitempty"`
	Status        []string   `json:"status,omitempty"`
	Source        []string   `json:"source,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
