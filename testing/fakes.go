// Package testing provides in-memory repository fakes and fixtures for testing the campaign system
package testing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/utils"
)

// FakeCampaignRepository is a mutex-guarded in-memory CampaignRepository
type FakeCampaignRepository struct {
	mu        sync.Mutex
	nextID    uint
	Campaigns map[uint]*models.EmailCampaign
}

func NewFakeCampaignRepository() *FakeCampaignRepository {
	return &FakeCampaignRepository{
		nextID:    1,
		Campaigns: make(map[uint]*models.EmailCampaign),
	}
}

func (r *FakeCampaignRepository) ByID(_ context.Context, id uint) (*models.EmailCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (r *FakeCampaignRepository) matches(c *models.EmailCampaign, f models.EmailCampaignFilter) bool {
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.UUID != nil && c.UUID != *f.UUID {
		return false
	}
	if f.InstitutionID != nil && c.InstitutionID != *f.InstitutionID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Provider != nil && c.Provider != *f.Provider {
		return false
	}
	if f.Name != nil && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(*f.Name)) {
		return false
	}
	if f.ScheduledTo != nil {
		if c.ScheduledAt == nil || c.ScheduledAt.After(*f.ScheduledTo) {
			return false
		}
	}
	return true
}

func (r *FakeCampaignRepository) ByFilter(_ context.Context, filter models.EmailCampaignFilter, orderBy string, limit, offset int) ([]*models.EmailCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.EmailCampaign
	for _, c := range r.Campaigns {
		if r.matches(c, filter) {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if strings.Contains(orderBy, "DESC") {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset), nil
}

func (r *FakeCampaignRepository) Save(_ context.Context, campaign *models.EmailCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if campaign.ID == 0 {
		campaign.ID = r.nextID
		r.nextID++
	}
	clone := *campaign
	r.Campaigns[campaign.ID] = &clone
	return nil
}

func (r *FakeCampaignRepository) SaveBatch(ctx context.Context, campaigns []*models.EmailCampaign) error {
	for _, c := range campaigns {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeCampaignRepository) Count(ctx context.Context, filter models.EmailCampaignFilter) (int64, error) {
	all, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(all)), err
}

func (r *FakeCampaignRepository) Exists(ctx context.Context, filter models.EmailCampaignFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeCampaignRepository) ByUUID(_ context.Context, raw string) (*models.EmailCampaign, error) {
	id, err := utils.ParseUUID(raw)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Campaigns {
		if c.UUID == id {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *FakeCampaignRepository) ByInstitution(ctx context.Context, institutionID uint, filter models.EmailCampaignFilter, limit, offset int) ([]*models.EmailCampaign, error) {
	filter.InstitutionID = &institutionID
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

func (r *FakeCampaignRepository) Update(_ context.Context, campaign *models.EmailCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := utils.UTCNow()
	campaign.UpdatedAt = &now
	clone := *campaign
	r.Campaigns[campaign.ID] = &clone
	return nil
}

func (r *FakeCampaignRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Campaigns, id)
	return nil
}

func (r *FakeCampaignRepository) TransitionStatus(_ context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if c.Status == status {
			c.Status = to
			now := utils.UTCNow()
			c.UpdatedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *FakeCampaignRepository) IncrementDeliveryCounters(_ context.Context, id uint, sentDelta, failedDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.Campaigns[id]; ok {
		c.SentCount += sentDelta
		c.FailedCount += failedDelta
	}
	return nil
}

func (r *FakeCampaignRepository) IncrementEventCounter(_ context.Context, id uint, eventType models.EmailEventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return nil
	}
	switch {
	case eventType == models.EmailEventOpen:
		c.OpenCount++
	case eventType == models.EmailEventClick:
		c.ClickCount++
	case eventType.IsBounce():
		c.BounceCount++
	case eventType == models.EmailEventUnsubscribe:
		c.UnsubscribeCount++
	}
	return nil
}

func (r *FakeCampaignRepository) OverwriteCounters(_ context.Context, id uint, counters models.CampaignCounters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.Campaigns[id]; ok {
		c.TotalRecipients = counters.TotalRecipients
		c.SentCount = counters.SentCount
		c.FailedCount = counters.FailedCount
		c.OpenCount = counters.OpenCount
		c.ClickCount = counters.ClickCount
		c.BounceCount = counters.BounceCount
		c.UnsubscribeCount = counters.UnsubscribeCount
	}
	return nil
}

func (r *FakeCampaignRepository) DueScheduled(ctx context.Context, now time.Time) ([]*models.EmailCampaign, error) {
	status := models.CampaignStatusScheduled
	return r.ByFilter(ctx, models.EmailCampaignFilter{Status: &status, ScheduledTo: &now}, "", 0, 0)
}

func (r *FakeCampaignRepository) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.EmailCampaign, error) {
	return r.ByFilter(ctx, models.EmailCampaignFilter{Status: &status}, "", 0, 0)
}

// FakeRecipientRepository is a mutex-guarded in-memory RecipientRepository
type FakeRecipientRepository struct {
	mu         sync.Mutex
	nextID     uint
	Recipients map[uint]*models.CampaignRecipient
}

func NewFakeRecipientRepository() *FakeRecipientRepository {
	return &FakeRecipientRepository{
		nextID:     1,
		Recipients: make(map[uint]*models.CampaignRecipient),
	}
}

func (r *FakeRecipientRepository) ByID(_ context.Context, id uint) (*models.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.Recipients[id]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (r *FakeRecipientRepository) matches(rec *models.CampaignRecipient, f models.CampaignRecipientFilter) bool {
	if f.ID != nil && rec.ID != *f.ID {
		return false
	}
	if f.CampaignID != nil && rec.CampaignID != *f.CampaignID {
		return false
	}
	if f.Email != nil && rec.Email != utils.NormalizeEmail(*f.Email) {
		return false
	}
	if f.Status != nil && rec.Status != *f.Status {
		return false
	}
	return true
}

func (r *FakeRecipientRepository) ByFilter(_ context.Context, filter models.CampaignRecipientFilter, _ string, limit, offset int) ([]*models.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.CampaignRecipient
	for _, rec := range r.Recipients {
		if r.matches(rec, filter) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *FakeRecipientRepository) Save(_ context.Context, rec *models.CampaignRecipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = r.nextID
		r.nextID++
	}
	clone := *rec
	r.Recipients[rec.ID] = &clone
	return nil
}

func (r *FakeRecipientRepository) SaveBatch(ctx context.Context, recs []*models.CampaignRecipient) error {
	for _, rec := range recs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeRecipientRepository) Count(ctx context.Context, filter models.CampaignRecipientFilter) (int64, error) {
	all, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(all)), err
}

func (r *FakeRecipientRepository) Exists(ctx context.Context, filter models.CampaignRecipientFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeRecipientRepository) ReplaceForCampaign(ctx context.Context, campaignID uint, recipients []*models.CampaignRecipient) error {
	r.mu.Lock()
	for id, rec := range r.Recipients {
		if rec.CampaignID == campaignID {
			delete(r.Recipients, id)
		}
	}
	r.mu.Unlock()
	return r.SaveBatch(ctx, recipients)
}

func (r *FakeRecipientRepository) NextQueuedBatch(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignRecipient, error) {
	status := models.RecipientStatusQueued
	return r.ByFilter(ctx, models.CampaignRecipientFilter{CampaignID: &campaignID, Status: &status}, "id ASC", limit, 0)
}

func (r *FakeRecipientRepository) MarkSent(_ context.Context, id uint, providerMessageID *string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.Recipients[id]; ok {
		rec.Status = models.RecipientStatusSent
		rec.ProviderMessageID = providerMessageID
		rec.SentAt = &sentAt
		rec.ErrorMessage = nil
	}
	return nil
}

func (r *FakeRecipientRepository) MarkFailed(_ context.Context, id uint, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.Recipients[id]; ok {
		rec.Status = models.RecipientStatusFailed
		rec.ErrorMessage = &errorMessage
	}
	return nil
}

func (r *FakeRecipientRepository) CountByStatus(_ context.Context, campaignID uint) (map[models.RecipientStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.RecipientStatus]int64)
	for _, rec := range r.Recipients {
		if rec.CampaignID == campaignID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func (r *FakeRecipientRepository) ByProviderMessageID(_ context.Context, messageID string) (*models.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *models.CampaignRecipient
	for _, rec := range r.Recipients {
		if rec.ProviderMessageID != nil && *rec.ProviderMessageID == messageID {
			if newest == nil || rec.ID > newest.ID {
				newest = rec
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	clone := *newest
	return &clone, nil
}

func (r *FakeRecipientRepository) LatestByEmail(_ context.Context, email string) (*models.CampaignRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := utils.NormalizeEmail(email)
	var newest *models.CampaignRecipient
	for _, rec := range r.Recipients {
		if rec.Email == normalized {
			if newest == nil || rec.ID > newest.ID {
				newest = rec
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	clone := *newest
	return &clone, nil
}

func (r *FakeRecipientRepository) ListByCampaign(ctx context.Context, campaignID uint, status *models.RecipientStatus, limit, offset int) ([]*models.CampaignRecipient, error) {
	return r.ByFilter(ctx, models.CampaignRecipientFilter{CampaignID: &campaignID, Status: status}, "id ASC", limit, offset)
}

// FakeEventRepository is a mutex-guarded in-memory EventRepository
type FakeEventRepository struct {
	mu     sync.Mutex
	nextID uint
	Events map[uint]*models.EmailEvent
}

func NewFakeEventRepository() *FakeEventRepository {
	return &FakeEventRepository{
		nextID: 1,
		Events: make(map[uint]*models.EmailEvent),
	}
}

func (r *FakeEventRepository) ByID(_ context.Context, id uint) (*models.EmailEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Events[id]
	if !ok {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

func (r *FakeEventRepository) ByFilter(_ context.Context, filter models.EmailEventFilter, orderBy string, limit, offset int) ([]*models.EmailEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.EmailEvent
	for _, e := range r.Events {
		if filter.CampaignID != nil && e.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.EventType != nil && e.EventType != *filter.EventType {
			continue
		}
		if filter.Email != nil && e.Email != utils.NormalizeEmail(*filter.Email) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if strings.Contains(orderBy, "DESC") {
			if !out[i].EventTimestamp.Equal(out[j].EventTimestamp) {
				return out[i].EventTimestamp.After(out[j].EventTimestamp)
			}
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset), nil
}

func (r *FakeEventRepository) Save(_ context.Context, e *models.EmailEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	}
	clone := *e
	r.Events[e.ID] = &clone
	return nil
}

func (r *FakeEventRepository) SaveBatch(ctx context.Context, events []*models.EmailEvent) error {
	for _, e := range events {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeEventRepository) Count(ctx context.Context, filter models.EmailEventFilter) (int64, error) {
	all, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(all)), err
}

func (r *FakeEventRepository) Exists(ctx context.Context, filter models.EmailEventFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeEventRepository) CountsByType(_ context.Context, campaignID uint) (map[models.EmailEventType]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.EmailEventType]int64)
	for _, e := range r.Events {
		if e.CampaignID == campaignID {
			counts[e.EventType]++
		}
	}
	return counts, nil
}

func (r *FakeEventRepository) RecentByCampaign(ctx context.Context, campaignID uint, limit int) ([]*models.EmailEvent, error) {
	return r.ByFilter(ctx, models.EmailEventFilter{CampaignID: &campaignID}, "event_timestamp DESC", limit, 0)
}

// FakeUnsubscribedEmailRepository is a mutex-guarded in-memory suppression list
type FakeUnsubscribedEmailRepository struct {
	mu      sync.Mutex
	nextID  uint
	Entries map[uint]*models.UnsubscribedEmail
}

func NewFakeUnsubscribedEmailRepository() *FakeUnsubscribedEmailRepository {
	return &FakeUnsubscribedEmailRepository{
		nextID:  1,
		Entries: make(map[uint]*models.UnsubscribedEmail),
	}
}

func (r *FakeUnsubscribedEmailRepository) ByID(_ context.Context, id uint) (*models.UnsubscribedEmail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Entries[id]
	if !ok {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

func (r *FakeUnsubscribedEmailRepository) ByFilter(_ context.Context, filter models.UnsubscribedEmailFilter, _ string, limit, offset int) ([]*models.UnsubscribedEmail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.UnsubscribedEmail
	for _, e := range r.Entries {
		if filter.InstitutionID != nil && e.InstitutionID != *filter.InstitutionID {
			continue
		}
		if filter.Email != nil && e.Email != utils.NormalizeEmail(*filter.Email) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *FakeUnsubscribedEmailRepository) Save(_ context.Context, e *models.UnsubscribedEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	}
	clone := *e
	r.Entries[e.ID] = &clone
	return nil
}

func (r *FakeUnsubscribedEmailRepository) SaveBatch(ctx context.Context, entries []*models.UnsubscribedEmail) error {
	for _, e := range entries {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeUnsubscribedEmailRepository) Count(ctx context.Context, filter models.UnsubscribedEmailFilter) (int64, error) {
	all, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(all)), err
}

func (r *FakeUnsubscribedEmailRepository) Exists(ctx context.Context, filter models.UnsubscribedEmailFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeUnsubscribedEmailRepository) Suppress(ctx context.Context, entry *models.UnsubscribedEmail) error {
	entry.Email = utils.NormalizeEmail(entry.Email)
	existing, err := r.ByEmail(ctx, entry.InstitutionID, entry.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return r.Save(ctx, entry)
}

func (r *FakeUnsubscribedEmailRepository) ByEmail(ctx context.Context, institutionID uint, email string) (*models.UnsubscribedEmail, error) {
	entries, err := r.ByFilter(ctx, models.UnsubscribedEmailFilter{InstitutionID: &institutionID, Email: &email}, "", 1, 0)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

func (r *FakeUnsubscribedEmailRepository) EmailSet(ctx context.Context, institutionID uint) (map[string]struct{}, error) {
	entries, err := r.ByFilter(ctx, models.UnsubscribedEmailFilter{InstitutionID: &institutionID}, "", 0, 0)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Email] = struct{}{}
	}
	return set, nil
}

func (r *FakeUnsubscribedEmailRepository) ListByInstitution(ctx context.Context, institutionID uint, search string, limit, offset int) ([]*models.UnsubscribedEmail, int64, error) {
	all, err := r.ByFilter(ctx, models.UnsubscribedEmailFilter{InstitutionID: &institutionID}, "", 0, 0)
	if err != nil {
		return nil, 0, err
	}
	var filtered []*models.UnsubscribedEmail
	for _, e := range all {
		if search == "" || strings.Contains(e.Email, strings.ToLower(search)) {
			filtered = append(filtered, e)
		}
	}
	return paginate(filtered, limit, offset), int64(len(filtered)), nil
}

func (r *FakeUnsubscribedEmailRepository) Remove(ctx context.Context, institutionID uint, email string) (bool, error) {
	existing, err := r.ByEmail(ctx, institutionID, email)
	if err != nil || existing == nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Entries, existing.ID)
	return true, nil
}

// FakeContactRepository is an in-memory ContactRepository
type FakeContactRepository struct {
	Contacts []*models.Contact
}

func (r *FakeContactRepository) ByID(_ context.Context, id uint) (*models.Contact, error) {
	for _, c := range r.Contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *FakeContactRepository) ByFilter(_ context.Context, _ models.ContactFilter, _ string, limit, offset int) ([]*models.Contact, error) {
	return paginate(r.Contacts, limit, offset), nil
}

func (r *FakeContactRepository) Save(_ context.Context, c *models.Contact) error {
	r.Contacts = append(r.Contacts, c)
	return nil
}

func (r *FakeContactRepository) SaveBatch(_ context.Context, cs []*models.Contact) error {
	r.Contacts = append(r.Contacts, cs...)
	return nil
}

func (r *FakeContactRepository) Count(_ context.Context, _ models.ContactFilter) (int64, error) {
	return int64(len(r.Contacts)), nil
}

func (r *FakeContactRepository) Exists(_ context.Context, _ models.ContactFilter) (bool, error) {
	return len(r.Contacts) > 0, nil
}

func (r *FakeContactRepository) ByAudience(_ context.Context, institutionID uint, criteria models.AudienceCriteria) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, c := range r.Contacts {
		if c.InstitutionID != institutionID {
			continue
		}
		if c.Email == nil || *c.Email == "" {
			continue
		}
		if len(criteria.Priority) > 0 && (c.Priority == nil || !containsFold(criteria.Priority, *c.Priority)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// FakeLeadRepository is an in-memory LeadRepository
type FakeLeadRepository struct {
	Leads []*models.Lead
}

func (r *FakeLeadRepository) ByID(_ context.Context, id uint) (*models.Lead, error) {
	for _, l := range r.Leads {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *FakeLeadRepository) ByFilter(_ context.Context, _ models.LeadFilter, _ string, limit, offset int) ([]*models.Lead, error) {
	return paginate(r.Leads, limit, offset), nil
}

func (r *FakeLeadRepository) Save(_ context.Context, l *models.Lead) error {
	r.Leads = append(r.Leads, l)
	return nil
}

func (r *FakeLeadRepository) SaveBatch(_ context.Context, ls []*models.Lead) error {
	r.Leads = append(r.Leads, ls...)
	return nil
}

func (r *FakeLeadRepository) Count(_ context.Context, _ models.LeadFilter) (int64, error) {
	return int64(len(r.Leads)), nil
}

func (r *FakeLeadRepository) Exists(_ context.Context, _ models.LeadFilter) (bool, error) {
	return len(r.Leads) > 0, nil
}

func (r *FakeLeadRepository) ByAudience(_ context.Context, institutionID uint, criteria models.AudienceCriteria) ([]*models.Lead, error) {
	var out []*models.Lead
	for _, l := range r.Leads {
		if l.InstitutionID != institutionID {
			continue
		}
		if l.Email == nil || *l.Email == "" {
			continue
		}
		if len(criteria.Status) > 0 && (l.Status == nil || !containsFold(criteria.Status, *l.Status)) {
			continue
		}
		if len(criteria.LeadSource) > 0 && (l.Source == nil || !containsFold(criteria.LeadSource, *l.Source)) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
