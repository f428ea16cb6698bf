package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harborcrm/harbor-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnsubscribedEmailRepositoryImpl implements the UnsubscribedEmailRepository interface
type UnsubscribedEmailRepositoryImpl struct {
	*BaseRepository[models.UnsubscribedEmail, models.UnsubscribedEmailFilter]
}

// NewUnsubscribedEmailRepository creates a new suppression list repository
func NewUnsubscribedEmailRepository(db *gorm.DB) UnsubscribedEmailRepository {
	return &UnsubscribedEmailRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UnsubscribedEmail, models.UnsubscribedEmailFilter](db),
	}
}

// Suppress inserts a suppression entry. The insert is idempotent: hitting the
// (institution_id, email) unique constraint is a silent success.
func (r *UnsubscribedEmailRepositoryImpl) Suppress(ctx context.Context, entry *models.UnsubscribedEmail) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	entry.Email = strings.ToLower(strings.TrimSpace(entry.Email))

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "institution_id"}, {Name: "email"}},
		DoNothing: true,
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to suppress email: %w", err)
	}

	return nil
}

// ByEmail retrieves the suppression entry for an address within an institution
func (r *UnsubscribedEmailRepositoryImpl) ByEmail(ctx context.Context, institutionID uint, email string) (*models.UnsubscribedEmail, error) {
	db := r.getDB(ctx)

	var entry models.UnsubscribedEmail
	err := db.Where("institution_id = ? AND email = ?", institutionID, strings.ToLower(strings.TrimSpace(email))).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find suppression entry: %w", err)
	}

	return &entry, nil
}

// EmailSet returns every suppressed address for the institution as a lookup set
func (r *UnsubscribedEmailRepositoryImpl) EmailSet(ctx context.Context, institutionID uint) (map[string]struct{}, error) {
	db := r.getDB(ctx)

	var emails []string
	err := db.Model(&models.UnsubscribedEmail{}).
		Where("institution_id = ?", institutionID).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load suppression set: %w", err)
	}

	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		set[strings.ToLower(email)] = struct{}{}
	}

	return set, nil
}

// ListByInstitution retrieves an institution's suppression entries with
// optional substring search, newest first, alongside the total count
func (r *UnsubscribedEmailRepositoryImpl) ListByInstitution(ctx context.Context, institutionID uint, search string, limit, offset int) ([]*models.UnsubscribedEmail, int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.UnsubscribedEmail{}).
		Where("institution_id = ?", institutionID)
	if search != "" {
		query = query.Where("email ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count suppression entries: %w", err)
	}

	var entries []*models.UnsubscribedEmail
	query = query.Order("unsubscribed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list suppression entries: %w", err)
	}

	return entries, total, nil
}

// Remove deletes a suppression entry, reporting whether one existed
func (r *UnsubscribedEmailRepositoryImpl) Remove(ctx context.Context, institutionID uint, email string) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Where("institution_id = ? AND email = ?", institutionID, strings.ToLower(strings.TrimSpace(email))).
		Delete(&models.UnsubscribedEmail{})
	if res.Error != nil {
		err = fmt.Errorf("failed to remove suppression entry: %w", res.Error)
		return false, err
	}

	return res.RowsAffected > 0, nil
}

// ByFilter retrieves suppression entries based on filter criteria
func (r *UnsubscribedEmailRepositoryImpl) ByFilter(ctx context.Context, filter models.UnsubscribedEmailFilter, orderBy string, limit, offset int) ([]*models.UnsubscribedEmail, error) {
	db := r.getDB(ctx)

	var entries []*models.UnsubscribedEmail
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

	err := query.Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find suppression entries by filter: %w", err)
	}

	return entries, nil
}

// Count returns the number of suppression entries matching the filter
func (r *UnsubscribedEmailRepositoryImpl) Count(ctx context.Context, filter models.UnsubscribedEmailFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var entry models.UnsubscribedEmail
	query := r.applyFilter(db.Model(&entry), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count suppression entries: %w", err)
	}

	return count, nil
}

// Exists checks if any suppression entry matching the filter exists
func (r *UnsubscribedEmailRepositoryImpl) Exists(ctx context.Context, filter models.UnsubscribedEmailFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *UnsubscribedEmailRepositoryImpl) applyFilter(db *gorm.DB, filter models.UnsubscribedEmailFilter) *gorm.DB {
	if filter.InstitutionID != nil {
		db = db.Where("institution_id = ?", *filter.InstitutionID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", strings.ToLower(strings.TrimSpace(*filter.Email)))
	}
	if filter.SourceCampaignID != nil {
		db = db.Where("source_campaign_id = ?", *filter.SourceCampaignID)
	}

	return db
}
