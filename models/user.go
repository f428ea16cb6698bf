package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the principal that owns sessions and campaigns. Session issuance
// lives outside this subsystem; the campaign engine only reads users to
// attribute ownership.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	InstitutionID uint       `gorm:"not null;index:idx_users_institution_id" json:"institution_id"`
	Email         string     `gorm:"not null;uniqueIndex:uk_users_email" json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Role          string     `gorm:"not null;default:'member'" json:"role"`
	IsActive      *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`

	// Relations
	Institution *Institution `gorm:"foreignKey:InstitutionID;references:ID" json:"institution,omitempty"`
}

// TableName returns the table name for the model
func (User) TableName() string {
	return "users"
}
