package repository

import (
	"context"
	"fmt"

	"github.com/harborcrm/harbor-backend/models"
	"gorm.io/gorm"
)

// LeadRepositoryImpl implements the LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

// ByAudience lists leads matching the audience criteria that carry a
// non-empty email address
func (r *LeadRepositoryImpl) ByAudience(ctx context.Context, institutionID uint, criteria models.AudienceCriteria) ([]*models.Lead, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Lead{}).
		Where("institution_id = ?", institutionID).
		Where("email IS NOT NULL AND email <> ''")

	if len(criteria.Status) > 0 {
		query = query.Where("status IN ?", criteria.Status)
	}
	if len(criteria.LeadSource) > 0 {
		query = query.Where("source IN ?", criteria.LeadSource)
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

	var leads []*models.Lead
	err := query.Order("id ASC").Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lead audience: %w", err)
	}

	return leads, nil
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)

	var leads []*models.Lead
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

	err := query.Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find leads by filter: %w", err)
	}

	return leads, nil
}

// Count returns the number of leads matching the filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var lead models.Lead
	query := r.applyFilter(db.Model(&lead), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}

	return count, nil
}

// Exists checks if any lead matching the filter exists
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *LeadRepositoryImpl) applyFilter(db *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.InstitutionID != nil {
		db = db.Where("institution_id = ?", *filter.InstitutionID)
	}
	if len(filter.Status) > 0 {
		db = db.Where("status IN ?", filter.Status)
	}
	if len(filter.Source) > 0 {
		db = db.Where("source IN ?", filter.Source)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}

	return db
}
