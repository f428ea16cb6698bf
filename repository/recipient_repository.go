package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborcrm/harbor-backend/models"
	"gorm.io/gorm"
)

// RecipientRepositoryImpl implements the RecipientRepository interface
type RecipientRepositoryImpl struct {
	*BaseRepository[models.CampaignRecipient, models.CampaignRecipientFilter]
}

// NewRecipientRepository creates a new campaign recipient repository
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &RecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignRecipient, models.CampaignRecipientFilter](db),
	}
}

// ReplaceForCampaign deletes any prior ledger for the campaign and inserts
// the snapshot in its place, all within one transaction
func (r *RecipientRepositoryImpl) ReplaceForCampaign(ctx context.Context, campaignID uint, recipients []*models.CampaignRecipient) error {
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

	err = db.Where("campaign_id = ?", campaignID).
		Delete(&models.CampaignRecipient{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear recipient ledger: %w", err)
	}

	if len(recipients) > 0 {
		err = db.CreateInBatches(recipients, 100).Error
		if err != nil {
			return fmt.Errorf("failed to insert recipient ledger: %w", err)
		}
	}

	return nil
}

// NextQueuedBatch returns up to limit queued entries, oldest first
func (r *RecipientRepositoryImpl) NextQueuedBatch(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignRecipient, error) {
	status := models.RecipientStatusQueued
	filter := models.CampaignRecipientFilter{
		CampaignID: &campaignID,
		Status:     &status,
	}
	return r.ByFilter(ctx, filter, "id ASC", limit, 0)
}

// MarkSent records a successful delivery on a ledger entry
func (r *RecipientRepositoryImpl) MarkSent(ctx context.Context, id uint, providerMessageID *string, sentAt time.Time) error {
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

	err = db.Model(&models.CampaignRecipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              models.RecipientStatusSent,
			"provider_message_id": providerMessageID,
			"sent_at":             sentAt,
			"error_message":       nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark recipient sent: %w", err)
	}

	return nil
}

// MarkFailed records a delivery failure on a ledger entry
func (r *RecipientRepositoryImpl) MarkFailed(ctx context.Context, id uint, errorMessage string) error {
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

	err = db.Model(&models.CampaignRecipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.RecipientStatusFailed,
			"error_message": errorMessage,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark recipient failed: %w", err)
	}

	return nil
}

// CountByStatus groups the campaign's ledger entries by status
func (r *RecipientRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		Status models.RecipientStatus
		Total  int64
	}
	var rows []row

	err := db.Model(&models.CampaignRecipient{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients by status: %w", err)
	}

	counts := make(map[models.RecipientStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	return counts, nil
}

// ByProviderMessageID retrieves the ledger entry carrying the provider message ID
func (r *RecipientRepositoryImpl) ByProviderMessageID(ctx context.Context, messageID string) (*models.CampaignRecipient, error) {
	filter := models.CampaignRecipientFilter{ProviderMessageID: &messageID}
	recipients, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient by provider message ID: %w", err)
	}

	if len(recipients) == 0 {
		return nil, nil
	}

	return recipients[0], nil
}

// LatestByEmail returns the most recently created ledger entry for the address
func (r *RecipientRepositoryImpl) LatestByEmail(ctx context.Context, email string) (*models.CampaignRecipient, error) {
	db := r.getDB(ctx)

	var recipient models.CampaignRecipient
	err := db.Where("LOWER(email) = LOWER(?)", email).
		Order("created_at DESC, id DESC").
		First(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest recipient by email: %w", err)
	}

	return &recipient, nil
}

// ListByCampaign retrieves a campaign's ledger with optional status filter and pagination
func (r *RecipientRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, status *models.RecipientStatus, limit, offset int) ([]*models.CampaignRecipient, error) {
	filter := models.CampaignRecipientFilter{
		CampaignID: &campaignID,
		Status:     status,
	}
	return r.ByFilter(ctx, filter, "id ASC", limit, offset)
}

// ByFilter retrieves ledger entries based on filter criteria
func (r *RecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignRecipientFilter, orderBy string, limit, offset int) ([]*models.CampaignRecipient, error) {
	db := r.getDB(ctx)

	var recipients []*models.CampaignRecipient
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

	err := query.Find(&recipients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find recipients by filter: %w", err)
	}

	return recipients, nil
}

// Count returns the number of ledger entries matching the filter
func (r *RecipientRepositoryImpl) Count(ctx context.Context, filter models.CampaignRecipientFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var recipient models.CampaignRecipient
	query := r.applyFilter(db.Model(&recipient), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}

	return count, nil
}

// Exists checks if any ledger entry matching the filter exists
func (r *RecipientRepositoryImpl) Exists(ctx context.Context, filter models.CampaignRecipientFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *RecipientRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignRecipientFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Email != nil {
		db = db.Where("LOWER(email) = LOWER(?)", *filter.Email)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ProviderMessageID != nil {
		db = db.Where("provider_message_id = ?", *filter.ProviderMessageID)
	}

	return db
}
