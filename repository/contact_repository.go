package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/harborcrm/harbor-backend/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements the ContactRepository interface
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db),
	}
}

// parseCriteriaTime accepts the date formats audience criteria arrive in
func parseCriteriaTime(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ByAudience lists contacts matching the audience criteria that carry a
// non-empty email address
func (r *ContactRepositoryImpl) ByAudience(ctx context.Context, institutionID uint, criteria models.AudienceCriteria) ([]*models.Contact, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Contact{}).
		Where("institution_id = ?", institutionID).
		Where("email IS NOT NULL AND email <> ''")

	if len(criteria.Priority) > 0 {
		query = query.Where("priority IN ?", criteria.Priority)
	}
	if criteria.CreatedAtFrom != nil {
		if t, ok := parseCriteriaTime(*criteria.CreatedAtFrom); ok {
			query = query.Where("created_at >= ?", t)
		}
	}
	if criteria.CreatedAtTo != nil {
		if t, ok := parseCriteriaTime(*criteria.CreatedAtTo); ok {
			query = query.Where("created_at <= ?", t)
		}
	}

	var contacts []*models.Contact
	err := query.Order("id ASC").Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contact audience: %w", err)
	}

	return contacts, nil
}

// ByFilter retrieves contacts based on filter criteria
func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)

	var contacts []*models.Contact
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts by filter: %w", err)
	}

	return contacts, nil
}

// Count returns the number of contacts matching the filter
func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var contact models.Contact
	query := r.applyFilter(db.Model(&contact), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	return count, nil
}

// Exists checks if any contact matching the filter exists
func (r *ContactRepositoryImpl) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, filter models.ContactFilter) *gorm.DB {
	if filter.InstitutionID != nil {
		db = db.Where("institution_id = ?", *filter.InstitutionID)
	}
	if len(filter.Priority) > 0 {
		db = db.Where("priority IN ?", filter.Priority)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}

	return db
}
