package businessflow

import (
	"context"
	"math"
	"net/mail"
	"strings"

	"github.com/harborcrm/harbor-backend/app/dto"
	"github.com/harborcrm/harbor-backend/app/services"
	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/repository"
	"github.com/harborcrm/harbor-backend/utils"
	"gorm.io/gorm"
)

// SuppressionFlow manages the per-institution suppression list
type SuppressionFlow interface {
	ListSuppressions(ctx context.Context, req *dto.ListSuppressionsRequest) (*dto.ListSuppressionsResponse, error)
	AddSuppression(ctx context.Context, req *dto.AddSuppressionRequest, metadata *ClientMetadata) (*dto.SuppressionResponse, error)
	RemoveSuppression(ctx context.Context, req *dto.RemoveSuppressionRequest) error

	// ProcessUnsubscribe suppresses an address on behalf of a recipient
	// action (unsubscribe link, provider webhook). Idempotent.
	ProcessUnsubscribe(ctx context.Context, institutionID uint, email string, sourceCampaignID *uint, reason string, metadata *ClientMetadata) error

	// HandleUnsubscribeToken validates a signed unsubscribe token and
	// suppresses the address it carries. Returns the suppressed email.
	HandleUnsubscribeToken(ctx context.Context, token string, metadata *ClientMetadata) (string, error)
}

// SuppressionFlowImpl implements the suppression list business flow
type SuppressionFlowImpl struct {
	unsubscribedRepo repository.UnsubscribedEmailRepository
	campaignRepo     repository.CampaignRepository
	eventRepo        repository.EventRepository
	tokenService     services.UnsubscribeTokenService
	db               *gorm.DB
}

// NewSuppressionFlow creates a new suppression flow instance
func NewSuppressionFlow(
	unsubscribedRepo repository.UnsubscribedEmailRepository,
	campaignRepo repository.CampaignRepository,
	eventRepo repository.EventRepository,
	tokenService services.UnsubscribeTokenService,
	db *gorm.DB,
) SuppressionFlow {
	return &SuppressionFlowImpl{
		unsubscribedRepo: unsubscribedRepo,
		campaignRepo:     campaignRepo,
		eventRepo:        eventRepo,
		tokenService:     tokenService,
		db:               db,
	}
}

// ListSuppressions lists suppression entries, newest first
func (s *SuppressionFlowImpl) ListSuppressions(ctx context.Context, req *dto.ListSuppressionsRequest) (*dto.ListSuppressionsResponse, error) {
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination parameters", err)
	}

	search := ""
	if req.Search != nil {
		search = strings.TrimSpace(*req.Search)
	}

	entries, total, err := s.unsubscribedRepo.ListByInstitution(ctx, req.InstitutionID, search, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("SUPPRESSION_LIST_FAILED", "Failed to list suppression entries", err)
	}

	items := make([]dto.SuppressionResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, s.toSuppressionResponse(ctx, entry))
	}

	return &dto.ListSuppressionsResponse{
		Items: items,
		Pagination: dto.PaginationResponse{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// toSuppressionResponse maps an entry, resolving the source campaign UUID
func (s *SuppressionFlowImpl) toSuppressionResponse(ctx context.Context, entry *models.UnsubscribedEmail) dto.SuppressionResponse {
	resp := dto.SuppressionResponse{
		Email:          entry.Email,
		Reason:         entry.Reason,
		UnsubscribedAt: entry.UnsubscribedAt,
	}
	if entry.SourceCampaignID != nil {
		if campaign, err := s.campaignRepo.ByID(ctx, *entry.SourceCampaignID); err == nil && campaign != nil {
			u := campaign.UUID.String()
			resp.SourceCampaignUUID = &u
		}
	}
	return resp
}

// AddSuppression manually suppresses an address for the institution
func (s *SuppressionFlowImpl) AddSuppression(ctx context.Context, req *dto.AddSuppressionRequest, metadata *ClientMetadata) (*dto.SuppressionResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if email == "" {
		return nil, NewBusinessError("SUPPRESSION_VALIDATION_FAILED", "Email is required", ErrSuppressionEmailRequired)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewBusinessError("SUPPRESSION_VALIDATION_FAILED", "Email address is not valid", ErrSuppressionEmailInvalid)
	}

	reason := "manual"
	if req.Reason != nil && strings.TrimSpace(*req.Reason) != "" {
		reason = strings.TrimSpace(*req.Reason)
	}

	entry := &models.UnsubscribedEmail{
		InstitutionID:  req.InstitutionID,
		Email:          email,
		Reason:         &reason,
		UnsubscribedAt: utils.UTCNow(),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			entry.IPAddress = &metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			entry.UserAgent = &metadata.UserAgent
		}
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.unsubscribedRepo.Suppress(txCtx, entry)
	})
	if err != nil {
		return nil, NewBusinessError("SUPPRESSION_ADD_FAILED", "Failed to suppress email", err)
	}

	// The insert is a no-op when the address is already suppressed, so the
	// stored row (not the one built above) is what the caller gets back
	stored, err := s.unsubscribedRepo.ByEmail(ctx, req.InstitutionID, email)
	if err != nil {
		return nil, NewBusinessError("SUPPRESSION_ADD_FAILED", "Failed to read back suppression entry", err)
	}
	if stored != nil {
		entry = stored
	}

	resp := s.toSuppressionResponse(ctx, entry)
	return &resp, nil
}

// RemoveSuppression re-allows an address for the institution
func (s *SuppressionFlowImpl) RemoveSuppression(ctx context.Context, req *dto.RemoveSuppressionRequest) error {
	email := utils.NormalizeEmail(req.Email)
	if email == "" {
		return NewBusinessError("SUPPRESSION_VALIDATION_FAILED", "Email is required", ErrSuppressionEmailRequired)
	}

	removed, err := s.unsubscribedRepo.Remove(ctx, req.InstitutionID, email)
	if err != nil {
		return NewBusinessError("SUPPRESSION_REMOVE_FAILED", "Failed to remove suppression entry", err)
	}
	if !removed {
		return NewBusinessError("SUPPRESSION_NOT_FOUND", "Email is not on the suppression list", ErrSuppressionNotFound)
	}

	return nil
}

// ProcessUnsubscribe suppresses an address triggered by a recipient action
func (s *SuppressionFlowImpl) ProcessUnsubscribe(ctx context.Context, institutionID uint, email string, sourceCampaignID *uint, reason string, metadata *ClientMetadata) error {
	normalized := utils.NormalizeEmail(email)
	if normalized == "" {
		return NewBusinessError("SUPPRESSION_VALIDATION_FAILED", "Email is required", ErrSuppressionEmailRequired)
	}

	if reason == "" {
		reason = "unsubscribe_link"
	}

	entry := &models.UnsubscribedEmail{
		InstitutionID:    institutionID,
		Email:            normalized,
		SourceCampaignID: sourceCampaignID,
		Reason:           &reason,
		UnsubscribedAt:   utils.UTCNow(),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			entry.IPAddress = &metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			entry.UserAgent = &metadata.UserAgent
		}
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.unsubscribedRepo.Suppress(txCtx, entry)
	})
	if err != nil {
		return NewBusinessError("SUPPRESSION_ADD_FAILED", "Failed to suppress email", err)
	}

	return nil
}

// HandleUnsubscribeToken processes a click on a signed unsubscribe link
func (s *SuppressionFlowImpl) HandleUnsubscribeToken(ctx context.Context, token string, metadata *ClientMetadata) (string, error) {
	payload, err := s.tokenService.Decode(token)
	if err != nil {
		return "", NewBusinessError("UNSUBSCRIBE_TOKEN_INVALID", "Unsubscribe link is invalid or has been tampered with", ErrUnsubscribeTokenInvalid)
	}

	campaign, err := s.campaignRepo.ByUUID(ctx, payload.CampaignUUID)
	if err != nil {
		return "", NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to resolve unsubscribe campaign", err)
	}
	if campaign == nil {
		return "", NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	normalized := utils.NormalizeEmail(payload.Email)
	existing, err := s.unsubscribedRepo.ByEmail(ctx, campaign.InstitutionID, normalized)
	if err != nil {
		return "", NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to check suppression list", err)
	}
	if existing != nil {
		// Repeated clicks on an already-suppressed address change nothing
		return payload.Email, nil
	}

	err = s.ProcessUnsubscribe(ctx, campaign.InstitutionID, payload.Email, &campaign.ID, "unsubscribe_link", metadata)
	if err != nil {
		return "", err
	}

	// Record the unsubscribe in the event trail so stat recomputes keep it
	record := &models.EmailEvent{
		CampaignID:     campaign.ID,
		Email:          normalized,
		EventType:      models.EmailEventUnsubscribe,
		EventTimestamp: utils.UTCNow(),
		CreatedAt:      utils.UTCNow(),
	}
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.eventRepo.Save(txCtx, record); err != nil {
			return err
		}
		return s.campaignRepo.IncrementEventCounter(txCtx, campaign.ID, models.EmailEventUnsubscribe)
	})
	if err != nil {
		return "", NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to record unsubscribe", err)
	}

	return payload.Email, nil
}
