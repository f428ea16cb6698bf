package models

import (
	"time"

	"github.com/google/uuid"
)

// Institution is the tenant isolation boundary. Every campaign, suppression
// entry, contact and lead belongs to exactly one institution.
type Institution struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_institutions_uuid" json:"uuid"`
	Name      string     `gorm:"not null" json:"name"`
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Institution) TableName() string {
	return "institutions"
}
