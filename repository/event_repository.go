package repository

import (
	"context"
	"fmt"

	"github.com/harborcrm/harbor-backend/models"
	"gorm.io/gorm"
)

// EventRepositoryImpl implements the EventRepository interface
type EventRepositoryImpl struct {
	*BaseRepository[models.EmailEvent, models.EmailEventFilter]
}

// NewEventRepository creates a new email event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &EventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.EmailEvent, models.EmailEventFilter](db),
	}
}

// CountsByType groups the campaign's events by type
func (r *EventRepositoryImpl) CountsByType(ctx context.Context, campaignID uint) (map[models.EmailEventType]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		EventType models.EmailEventType
		Total     int64
	}
	var rows []row

	err := db.Model(&models.EmailEvent{}).
		Select("event_type, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count events by type: %w", err)
	}

	counts := make(map[models.EmailEventType]int64, len(rows))
	for _, row := range rows {
		counts[row.EventType] = row.Total
	}

	return counts, nil
}

// RecentByCampaign returns the newest events first, up to limit
func (r *EventRepositoryImpl) RecentByCampaign(ctx context.Context, campaignID uint, limit int) ([]*models.EmailEvent, error) {
	filter := models.EmailEventFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "event_timestamp DESC, id DESC", limit, 0)
}

// ByFilter retrieves email events based on filter criteria
func (r *EventRepositoryImpl) ByFilter(ctx context.Context, filter models.EmailEventFilter, orderBy string, limit, offset int) ([]*models.EmailEvent, error) {
	db := r.getDB(ctx)

	var events []*models.EmailEvent
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

	err := query.Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find email events by filter: %w", err)
	}

	return events, nil
}

// Count returns the number of email events matching the filter
func (r *EventRepositoryImpl) Count(ctx context.Context, filter models.EmailEventFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var event models.EmailEvent
	query := r.applyFilter(db.Model(&event), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count email events: %w", err)
	}

	return count, nil
}

// Exists checks if any email event matching the filter exists
func (r *EventRepositoryImpl) Exists(ctx context.Context, filter models.EmailEventFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *EventRepositoryImpl) applyFilter(db *gorm.DB, filter models.EmailEventFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Email != nil {
		db = db.Where("LOWER(email) = LOWER(?)", *filter.Email)
	}
	if filter.EventType != nil {
		db = db.Where("event_type = ?", *filter.EventType)
	}
	if filter.After != nil {
		db = db.Where("event_timestamp >= ?", *filter.After)
	}
	if filter.Before != nil {
		db = db.Where("event_timestamp <= ?", *filter.Before)
	}

	return db
}
