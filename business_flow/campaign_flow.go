package businessflow

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harborcrm/harbor-backend/app/dto"
	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/repository"
	"github.com/harborcrm/harbor-backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	defaultPageSize  = 20
	recentEventLimit = 50
)

// CampaignFlow handles the email campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, req *dto.GetCampaignRequest) (*dto.CampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest) (*dto.CampaignResponse, error)
	DeleteCampaign(ctx context.Context, req *dto.DeleteCampaignRequest) error
	DuplicateCampaign(ctx context.Context, req *dto.DuplicateCampaignRequest) (*dto.CampaignResponse, error)
	EstimateAudience(ctx context.Context, req *dto.EstimateAudienceRequest) (*dto.EstimateAudienceResponse, error)
	SendCampaign(ctx context.Context, req *dto.SendCampaignRequest) (*dto.SendCampaignResponse, error)
	GetStats(ctx context.Context, req *dto.GetCampaignRequest) (*dto.CampaignStatsResponse, error)
	ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest) (*dto.ListRecipientsResponse, error)
	ExportRecipients(ctx context.Context, req *dto.GetCampaignRequest) (string, []byte, error)
}

// CampaignFlowImpl implements the email campaign business flow
type CampaignFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	eventRepo     repository.EventRepository
	audienceFlow  AudienceFlow
	dispatcher    CampaignDispatcher
	db            *gorm.DB
}

// NewCampaignFlow creates a new email campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	eventRepo repository.EventRepository,
	audienceFlow AudienceFlow,
	dispatcher CampaignDispatcher,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		eventRepo:     eventRepo,
		audienceFlow:  audienceFlow,
		dispatcher:    dispatcher,
		db:            db,
	}
}

// audienceFromDTO converts a request audience to the persisted model
func audienceFromDTO(a *dto.AudienceFilter) models.AudienceFilter {
	if a == nil {
		return models.AudienceFilter{}
	}
	return models.AudienceFilter{
		Source: models.AudienceSource(a.Source),
		Filters: models.AudienceCriteria{
			Status:        a.Filters.Status,
			Priority:      a.Filters.Priority,
			LeadSource:    a.Filters.LeadSource,
			Tags:          a.Filters.Tags,
			CreatedAtFrom: a.Filters.CreatedAtFrom,
			CreatedAtTo:   a.Filters.CreatedAtTo,
		},
	}
}

// audienceToDTO converts a persisted audience to its response form
func audienceToDTO(a models.AudienceFilter) *dto.AudienceFilter {
	return &dto.AudienceFilter{
		Source: string(a.Source),
		Filters: dto.AudienceCriteria{
			Status:        a.Filters.Status,
			Priority:      a.Filters.Priority,
			LeadSource:    a.Filters.LeadSource,
			Tags:          a.Filters.Tags,
			CreatedAtFrom: a.Filters.CreatedAtFrom,
			CreatedAtTo:   a.Filters.CreatedAtTo,
		},
	}
}

// toCampaignResponse maps a campaign model to its response form
func toCampaignResponse(c *models.EmailCampaign) dto.CampaignResponse {
	return dto.CampaignResponse{
		UUID:             c.UUID.String(),
		Name:             c.Name,
		Subject:          c.Subject,
		PreviewText:      c.PreviewText,
		SenderName:       c.SenderName,
		SenderEmail:      c.SenderEmail,
		HTMLContent:      c.HTMLContent,
		Status:           c.Status.String(),
		Provider:         string(c.Provider),
		ScheduledAt:      c.ScheduledAt,
		Audience:         audienceToDTO(c.Audience),
		Tags:             c.Tags,
		TotalRecipients:  c.TotalRecipients,
		SentCount:        c.SentCount,
		FailedCount:      c.FailedCount,
		OpenCount:        c.OpenCount,
		ClickCount:       c.ClickCount,
		BounceCount:      c.BounceCount,
		UnsubscribeCount: c.UnsubscribeCount,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// normalizePage applies paging defaults and bounds
func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

// validateCreateCampaignRequest checks business rules beyond struct validation
func (s *CampaignFlowImpl) validateCreateCampaignRequest(req *dto.CreateCampaignRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ErrCampaignNameRequired
	}
	if strings.TrimSpace(req.Subject) == "" {
		return ErrCampaignSubjectRequired
	}
	if strings.TrimSpace(req.HTMLContent) == "" {
		return ErrCampaignContentRequired
	}
	if strings.TrimSpace(req.SenderName) == "" || strings.TrimSpace(req.SenderEmail) == "" {
		return ErrCampaignSenderRequired
	}
	if req.Audience == nil {
		return ErrCampaignAudienceRequired
	}
	if !models.AudienceSource(req.Audience.Source).Valid() {
		return ErrInvalidAudienceSource
	}
	if req.Provider != nil && !models.CampaignProvider(*req.Provider).Valid() {
		return ErrInvalidProvider
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.After(utils.UTCNow()) {
		return ErrScheduleTimeInPast
	}
	return nil
}

// CreateCampaign creates a draft (or scheduled) campaign and previews its audience size
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, _ *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	if err := s.validateCreateCampaignRequest(req); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	audience := audienceFromDTO(req.Audience)

	estimate, err := s.audienceFlow.Estimate(ctx, req.InstitutionID, audience)
	if err != nil {
		return nil, err
	}

	status := models.CampaignStatusDraft
	if req.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	}

	provider := models.CampaignProviderBrevo
	if req.Provider != nil {
		provider = models.CampaignProvider(*req.Provider)
	}

	campaign := &models.EmailCampaign{
		UUID:            uuid.New(),
		InstitutionID:   req.InstitutionID,
		CreatedByID:     req.CreatedByID,
		Name:            strings.TrimSpace(req.Name),
		Subject:         strings.TrimSpace(req.Subject),
		PreviewText:     req.PreviewText,
		SenderName:      strings.TrimSpace(req.SenderName),
		SenderEmail:     utils.NormalizeEmail(req.SenderEmail),
		HTMLContent:     req.HTMLContent,
		Status:          status,
		Provider:        provider,
		ScheduledAt:     req.ScheduledAt,
		Audience:        audience,
		Tags:            req.Tags,
		TotalRecipients: estimate,
		CreatedAt:       utils.UTCNow(),
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		UUID:                campaign.UUID.String(),
		Status:              campaign.Status.String(),
		EstimatedRecipients: estimate,
		CreatedAt:           campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ListCampaigns lists an institution's campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination parameters", err)
	}

	filter := models.EmailCampaignFilter{InstitutionID: &req.InstitutionID}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("INVALID_STATUS", "Invalid campaign status filter", ErrInvalidCampaignStatus)
		}
		filter.Status = &status
	}
	if req.Search != nil && strings.TrimSpace(*req.Search) != "" {
		search := strings.TrimSpace(*req.Search)
		filter.Name = &search
	}

	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		resp := toCampaignResponse(c)
		// Keep list payloads small
		resp.HTMLContent = ""
		items = append(items, resp)
	}

	return &dto.ListCampaignsResponse{
		Items: items,
		Pagination: dto.PaginationResponse{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// getOwnedCampaign loads a campaign by UUID and verifies tenant ownership
func (s *CampaignFlowImpl) getOwnedCampaign(ctx context.Context, campaignUUID string, institutionID uint) (*models.EmailCampaign, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.InstitutionID != institutionID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Access denied: campaign belongs to another institution", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

// GetCampaign returns a single campaign
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, req *dto.GetCampaignRequest) (*dto.CampaignResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return nil, err
	}
	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// UpdateCampaign updates an editable campaign's content, audience, or schedule
func (s *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest) (*dto.CampaignResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Only draft and scheduled campaigns can be edited", ErrCampaignNotEditable)
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignNameRequired)
		}
		campaign.Name = strings.TrimSpace(*req.Name)
	}
	if req.Subject != nil {
		if strings.TrimSpace(*req.Subject) == "" {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignSubjectRequired)
		}
		campaign.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.PreviewText != nil {
		campaign.PreviewText = req.PreviewText
	}
	if req.SenderName != nil {
		campaign.SenderName = strings.TrimSpace(*req.SenderName)
	}
	if req.SenderEmail != nil {
		campaign.SenderEmail = utils.NormalizeEmail(*req.SenderEmail)
	}
	if req.HTMLContent != nil {
		if strings.TrimSpace(*req.HTMLContent) == "" {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignContentRequired)
		}
		campaign.HTMLContent = *req.HTMLContent
	}
	if req.Provider != nil {
		provider := models.CampaignProvider(*req.Provider)
		if !provider.Valid() {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrInvalidProvider)
		}
		campaign.Provider = provider
	}
	if req.Tags != nil {
		campaign.Tags = req.Tags
	}
	if req.ScheduledAt != nil {
		if !req.ScheduledAt.After(utils.UTCNow()) {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrScheduleTimeInPast)
		}
		campaign.ScheduledAt = req.ScheduledAt
		campaign.Status = models.CampaignStatusScheduled
	}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		if !status.Valid() || !campaign.CanTransitionTo(status) {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrInvalidCampaignStatus)
		}
		campaign.Status = status
		if status == models.CampaignStatusDraft {
			campaign.ScheduledAt = nil
		}
	}

	if req.Audience != nil {
		if !models.AudienceSource(req.Audience.Source).Valid() {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrInvalidAudienceSource)
		}
		campaign.Audience = audienceFromDTO(req.Audience)

		estimate, err := s.audienceFlow.Estimate(ctx, req.InstitutionID, campaign.Audience)
		if err != nil {
			return nil, err
		}
		campaign.TotalRecipients = estimate
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Update(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}

	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// DeleteCampaign deletes a campaign that is not actively sending
func (s *CampaignFlowImpl) DeleteCampaign(ctx context.Context, req *dto.DeleteCampaignRequest) error {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return err
	}

	if !campaign.IsDeletable() {
		return NewBusinessError("CAMPAIGN_NOT_DELETABLE", "Campaign cannot be deleted while sending", ErrCampaignNotDeletable)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Delete(txCtx, campaign.ID)
	})
	if err != nil {
		return NewBusinessError("CAMPAIGN_DELETE_FAILED", "Campaign deletion failed", err)
	}

	return nil
}

// DuplicateCampaign copies a campaign's content and audience into a fresh draft
func (s *CampaignFlowImpl) DuplicateCampaign(ctx context.Context, req *dto.DuplicateCampaignRequest) (*dto.CampaignResponse, error) {
	original, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	copyCampaign := &models.EmailCampaign{
		UUID:          uuid.New(),
		InstitutionID: original.InstitutionID,
		CreatedByID:   req.CreatedByID,
		Name:          original.Name + " (Copy)",
		Subject:       original.Subject,
		PreviewText:   original.PreviewText,
		SenderName:    original.SenderName,
		SenderEmail:   original.SenderEmail,
		HTMLContent:   original.HTMLContent,
		Status:        models.CampaignStatusDraft,
		Provider:      original.Provider,
		Audience:      original.Audience,
		Tags:          original.Tags,
		CreatedAt:     utils.UTCNow(),
	}

	estimate, err := s.audienceFlow.Estimate(ctx, req.InstitutionID, copyCampaign.Audience)
	if err != nil {
		return nil, err
	}
	copyCampaign.TotalRecipients = estimate

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, copyCampaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_DUPLICATION_FAILED", "Campaign duplication failed", err)
	}

	resp := toCampaignResponse(copyCampaign)
	return &resp, nil
}

// EstimateAudience previews how many recipients a filter resolves to
func (s *CampaignFlowImpl) EstimateAudience(ctx context.Context, req *dto.EstimateAudienceRequest) (*dto.EstimateAudienceResponse, error) {
	if req.Audience == nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Audience is required", ErrCampaignAudienceRequired)
	}

	estimate, err := s.audienceFlow.Estimate(ctx, req.InstitutionID, audienceFromDTO(req.Audience))
	if err != nil {
		return nil, err
	}

	return &dto.EstimateAudienceResponse{TotalRecipients: estimate}, nil
}

// SendCampaign starts a campaign send. The transition into sending is an
// atomic conditional update, so exactly one of any concurrent send requests
// wins; the rest are rejected without side effects.
func (s *CampaignFlowImpl) SendCampaign(ctx context.Context, req *dto.SendCampaignRequest) (*dto.SendCampaignResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(campaign.Subject) == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign must have a subject", ErrCampaignSubjectRequired)
	}
	if strings.TrimSpace(campaign.HTMLContent) == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign must have HTML content", ErrCampaignContentRequired)
	}

	// Resolve the audience fresh before claiming the campaign; an empty
	// audience never moves the status.
	recipients, err := s.audienceFlow.Resolve(ctx, campaign.InstitutionID, campaign.Audience)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, NewBusinessError("EMPTY_AUDIENCE", "No recipients match the audience filters", ErrEmptyAudience)
	}

	claimed, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID, models.SendableStatuses(), models.CampaignStatusSending)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_SEND_FAILED", "Failed to start campaign send", err)
	}
	if !claimed {
		return nil, NewBusinessError("CAMPAIGN_NOT_SENDABLE", "Campaign is already sending or has finished", ErrCampaignNotSendable)
	}

	ledger := make([]*models.CampaignRecipient, 0, len(recipients))
	for _, r := range recipients {
		ledger = append(ledger, &models.CampaignRecipient{
			CampaignID: campaign.ID,
			ContactID:  r.ContactID,
			LeadID:     r.LeadID,
			Email:      utils.NormalizeEmail(r.Email),
			Name:       r.Name,
			Status:     models.RecipientStatusQueued,
			CreatedAt:  utils.UTCNow(),
		})
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.recipientRepo.ReplaceForCampaign(txCtx, campaign.ID, ledger); err != nil {
			return err
		}
		return s.campaignRepo.OverwriteCounters(txCtx, campaign.ID, models.CampaignCounters{
			TotalRecipients: len(ledger),
		})
	})
	if err != nil {
		// The ledger could not be materialized; the campaign cannot proceed
		_, _ = s.campaignRepo.TransitionStatus(ctx, campaign.ID,
			[]models.CampaignStatus{models.CampaignStatusSending}, models.CampaignStatusFailed)
		return nil, NewBusinessError("CAMPAIGN_SEND_FAILED", "Failed to materialize recipient ledger", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(campaign.ID)
	}

	return &dto.SendCampaignResponse{
		UUID:            campaign.UUID.String(),
		Status:          models.CampaignStatusSending.String(),
		TotalRecipients: len(ledger),
	}, nil
}

// roundRate rounds a percentage to two decimal places
func roundRate(count int, sent int) float64 {
	if sent < 1 {
		sent = 1
	}
	return math.Round(float64(count)/float64(sent)*100*100) / 100
}

// GetStats recomputes engagement aggregates from the event trail and
// overwrites the campaign's cached counters with the result
func (s *CampaignFlowImpl) GetStats(ctx context.Context, req *dto.GetCampaignRequest) (*dto.CampaignStatsResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	counts, err := s.eventRepo.CountsByType(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STATS_FAILED", "Failed to aggregate events", err)
	}

	opened := int(counts[models.EmailEventOpen])
	clicked := int(counts[models.EmailEventClick])
	bounced := int(counts[models.EmailEventBounce] +
		counts[models.EmailEventHardBounce] +
		counts[models.EmailEventSoftBounce])
	unsubscribed := int(counts[models.EmailEventUnsubscribe])

	campaign.OpenCount = opened
	campaign.ClickCount = clicked
	campaign.BounceCount = bounced
	campaign.UnsubscribeCount = unsubscribed

	err = s.campaignRepo.OverwriteCounters(ctx, campaign.ID, models.CampaignCounters{
		TotalRecipients:  campaign.TotalRecipients,
		SentCount:        campaign.SentCount,
		FailedCount:      campaign.FailedCount,
		OpenCount:        opened,
		ClickCount:       clicked,
		BounceCount:      bounced,
		UnsubscribeCount: unsubscribed,
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STATS_FAILED", "Failed to refresh cached counters", err)
	}

	events, err := s.eventRepo.RecentByCampaign(ctx, campaign.ID, recentEventLimit)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STATS_FAILED", "Failed to load recent events", err)
	}

	recent := make([]dto.EmailEventResponse, 0, len(events))
	for _, e := range events {
		recent = append(recent, dto.EmailEventResponse{
			Email:          e.Email,
			EventType:      e.EventType.String(),
			EventTimestamp: e.EventTimestamp,
		})
	}

	return &dto.CampaignStatsResponse{
		UUID:             campaign.UUID.String(),
		Status:           campaign.Status.String(),
		TotalRecipients:  campaign.TotalRecipients,
		SentCount:        campaign.SentCount,
		FailedCount:      campaign.FailedCount,
		OpenCount:        opened,
		ClickCount:       clicked,
		BounceCount:      bounced,
		UnsubscribeCount: unsubscribed,
		Rates: dto.CampaignStatsRates{
			OpenRate:        roundRate(opened, campaign.SentCount),
			ClickRate:       roundRate(clicked, campaign.SentCount),
			BounceRate:      roundRate(bounced, campaign.SentCount),
			UnsubscribeRate: roundRate(unsubscribed, campaign.SentCount),
		},
		RecentEvents: recent,
	}, nil
}

// ListRecipients lists a campaign's recipient ledger
func (s *CampaignFlowImpl) ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest) (*dto.ListRecipientsResponse, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination parameters", err)
	}

	var status *models.RecipientStatus
	if req.Status != nil {
		st := models.RecipientStatus(*req.Status)
		status = &st
	}

	total, err := s.recipientRepo.Count(ctx, models.CampaignRecipientFilter{
		CampaignID: &campaign.ID,
		Status:     status,
	})
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to count recipients", err)
	}

	recipients, err := s.recipientRepo.ListByCampaign(ctx, campaign.ID, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to list recipients", err)
	}

	items := make([]dto.RecipientResponse, 0, len(recipients))
	for _, r := range recipients {
		items = append(items, dto.RecipientResponse{
			Email:             r.Email,
			Name:              r.Name,
			Status:            r.Status.String(),
			ProviderMessageID: r.ProviderMessageID,
			ErrorMessage:      r.ErrorMessage,
			SentAt:            r.SentAt,
		})
	}

	return &dto.ListRecipientsResponse{
		Items: items,
		Pagination: dto.PaginationResponse{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// ExportRecipients renders the complete recipient ledger as an Excel workbook
func (s *CampaignFlowImpl) ExportRecipients(ctx context.Context, req *dto.GetCampaignRequest) (string, []byte, error) {
	campaign, err := s.getOwnedCampaign(ctx, req.UUID, req.InstitutionID)
	if err != nil {
		return "", nil, err
	}

	recipients, err := s.recipientRepo.ListByCampaign(ctx, campaign.ID, nil, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("RECIPIENT_EXPORT_FAILED", "Failed to load recipient ledger", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)

	header := []string{"email", "name", "status", "provider_message_id", "error_message", "sent_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, r := range recipients {
		name := ""
		if r.Name != nil {
			name = *r.Name
		}
		messageID := ""
		if r.ProviderMessageID != nil {
			messageID = *r.ProviderMessageID
		}
		errorMessage := ""
		if r.ErrorMessage != nil {
			errorMessage = *r.ErrorMessage
		}
		sentAt := ""
		if r.SentAt != nil {
			sentAt = r.SentAt.UTC().Format(time.RFC3339)
		}

		record := []string{r.Email, name, r.Status.String(), messageID, errorMessage, sentAt}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("campaign_%s_recipients_%s.xlsx", campaign.UUID.String(), strconv.FormatInt(utils.UTCNow().Unix(), 10))
	return filename, buf.Bytes(), nil
}
