package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.EmailCampaign, models.EmailCampaignFilter]
}

// NewCampaignRepository creates a new email campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.EmailCampaign, models.EmailCampaignFilter](db),
	}
}

// ByID retrieves an email campaign by ID
func (r *CampaignRepositoryImpl) ByID(ctx context.Context, id uint) (*models.EmailCampaign, error) {
	db := r.getDB(ctx)

	var campaign models.EmailCampaign
	err := db.Preload("CreatedBy").
		Preload("Institution").
		Last(&campaign, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find email campaign by ID %d: %w", id, err)
	}

	return &campaign, nil
}

// ByUUID retrieves an email campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, rawUUID string) (*models.EmailCampaign, error) {
	parsedUUID, err := utils.ParseUUID(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.EmailCampaignFilter{UUID: &parsedUUID}
	campaigns, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find email campaign by UUID: %w", err)
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByInstitution retrieves an institution's campaigns with pagination, newest first
func (r *CampaignRepositoryImpl) ByInstitution(ctx context.Context, institutionID uint, filter models.EmailCampaignFilter, limit, offset int) ([]*models.EmailCampaign, error) {
	filter.InstitutionID = &institutionID
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// Update updates an email campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.EmailCampaign) error {
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

	now := time.Now().UTC()
	campaign.UpdatedAt = &now

	err = db.Save(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to update email campaign: %w", err)
	}

	return nil
}

// Delete removes a campaign; ledger rows and events cascade at the database level
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, id uint) error {
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

	err = db.Delete(&models.EmailCampaign{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete email campaign: %w", err)
	}

	return nil
}

// TransitionStatus atomically moves the campaign from one of the expected
// statuses to the target status. The conditional UPDATE is the single gate
// for concurrent transitions: exactly one racing caller observes true.
func (r *CampaignRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
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

	now := time.Now().UTC()
	res := db.Model(&models.EmailCampaign{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": now,
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to transition campaign status: %w", res.Error)
		return false, err
	}

	return res.RowsAffected == 1, nil
}

// IncrementDeliveryCounters bumps sent/failed aggregates in SQL
func (r *CampaignRepositoryImpl) IncrementDeliveryCounters(ctx context.Context, id uint, sentDelta, failedDelta int) error {
	if sentDelta == 0 && failedDelta == 0 {
		return nil
	}

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

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if sentDelta != 0 {
		updates["sent_count"] = gorm.Expr("sent_count + ?", sentDelta)
	}
	if failedDelta != 0 {
		updates["failed_count"] = gorm.Expr("failed_count + ?", failedDelta)
	}

	err = db.Model(&models.EmailCampaign{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to increment delivery counters: %w", err)
	}

	return nil
}

// eventCounterColumn maps an event type to its cached aggregate column, if any
func eventCounterColumn(eventType models.EmailEventType) string {
	switch {
	case eventType == models.EmailEventOpen:
		return "open_count"
	case eventType == models.EmailEventClick:
		return "click_count"
	case eventType.IsBounce():
		return "bounce_count"
	case eventType == models.EmailEventUnsubscribe:
		return "unsubscribe_count"
	default:
		return ""
	}
}

// IncrementEventCounter bumps the aggregate column matching the event type
func (r *CampaignRepositoryImpl) IncrementEventCounter(ctx context.Context, id uint, eventType models.EmailEventType) error {
	column := eventCounterColumn(eventType)
	if column == "" {
		return nil
	}

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

	err = db.Model(&models.EmailCampaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       gorm.Expr(column+" + 1"),
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}

	return nil
}

// OverwriteCounters replaces every cached aggregate with recomputed values
func (r *CampaignRepositoryImpl) OverwriteCounters(ctx context.Context, id uint, counters models.CampaignCounters) error {
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

	err = db.Model(&models.EmailCampaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_recipients":  counters.TotalRecipients,
			"sent_count":        counters.SentCount,
			"failed_count":      counters.FailedCount,
			"open_count":        counters.OpenCount,
			"click_count":       counters.ClickCount,
			"bounce_count":      counters.BounceCount,
			"unsubscribe_count": counters.UnsubscribeCount,
			"updated_at":        time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to overwrite campaign counters: %w", err)
	}

	return nil
}

// DueScheduled lists scheduled campaigns whose scheduled_at has passed
func (r *CampaignRepositoryImpl) DueScheduled(ctx context.Context, now time.Time) ([]*models.EmailCampaign, error) {
	status := models.CampaignStatusScheduled
	filter := models.EmailCampaignFilter{
		Status:      &status,
		ScheduledTo: &now,
	}
	return r.ByFilter(ctx, filter, "scheduled_at ASC", 0, 0)
}

// ListByStatus lists campaigns in the given status, oldest first
func (r *CampaignRepositoryImpl) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.EmailCampaign, error) {
	filter := models.EmailCampaignFilter{Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC", 0, 0)
}

// ByFilter retrieves email campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.EmailCampaignFilter, orderBy string, limit, offset int) ([]*models.EmailCampaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.EmailCampaign
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

	query = query.Preload("CreatedBy")

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find email campaigns by filter: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of email campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.EmailCampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var campaign models.EmailCampaign
	query := r.applyFilter(db.Model(&campaign), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count email campaigns: %w", err)
	}

	return count, nil
}

// Exists checks if any email campaign matching the filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.EmailCampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.EmailCampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.InstitutionID != nil {
		db = db.Where("institution_id = ?", *filter.InstitutionID)
	}
	if filter.CreatedByID != nil {
		db = db.Where("created_by_id = ?", *filter.CreatedByID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Provider != nil {
		db = db.Where("provider = ?", *filter.Provider)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.ScheduledTo != nil {
		db = db.Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", *filter.ScheduledTo)
	}

	return db
}
