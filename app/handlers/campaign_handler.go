package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/harborcrm/harbor-backend/app/dto"
	businessflow "github.com/harborcrm/harbor-backend/business_flow"
)

// CampaignHandlerInterface defines the contract for email campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
	DuplicateCampaign(c fiber.Ctx) error
	SendCampaign(c fiber.Ctx) error
	EstimateAudience(c fiber.Ctx) error
	GetCampaignStats(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
	ExportRecipients(c fiber.Ctx) error
}

// CampaignHandler handles email campaign HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new email campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *CampaignHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, businessflow.CancelFuncKey, cancel)
	return ctx
}

// institutionID extracts the authenticated tenant from the request context
func (h *CampaignHandler) institutionID(c fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("institution_id").(uint)
	return id, ok
}

func (h *CampaignHandler) userID(c fiber.Ctx) *uint {
	if id, ok := c.Locals("user_id").(uint); ok {
		return &id
	}
	return nil
}

// businessErrorResponse maps well-known business errors to HTTP responses
func (h *CampaignHandler) businessErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied", "CAMPAIGN_ACCESS_DENIED", nil)
	case businessflow.IsCampaignNotEditable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign can no longer be edited", "CAMPAIGN_NOT_EDITABLE", nil)
	case businessflow.IsCampaignNotDeletable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be deleted while sending", "CAMPAIGN_NOT_DELETABLE", nil)
	case businessflow.IsCampaignNotSendable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is already sending or has finished", "CAMPAIGN_NOT_SENDABLE", nil)
	case businessflow.IsEmptyAudience(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No recipients match the audience filters", "EMPTY_AUDIENCE", nil)
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	default:
		log.Println(fallbackMessage, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}
}

// CreateCampaign handles email campaign creation
// @Summary Create Email Campaign
// @Tags Email Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Email campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", collectValidationErrors(err))
	}

	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}
	req.InstitutionID = institutionID
	req.CreatedByID = h.userID(c)

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.CreateCampaign(h.createRequestContext(c), &req, metadata)
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Email campaign created successfully", result)
}

// ListCampaigns handles listing an institution's campaigns
// @Summary List Email Campaigns
// @Tags Email Campaigns
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Filter by name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaigns retrieved successfully"
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.ListCampaignsRequest{InstitutionID: institutionID}
	req.Page, _ = strconv.Atoi(c.Query("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.Query("page_size", "20"))
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if search := c.Query("search"); search != "" {
		req.Search = &search
	}

	result, err := h.campaignFlow.ListCampaigns(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Failed to list campaigns", "CAMPAIGN_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign handles retrieving a single campaign
// @Summary Get Email Campaign
// @Tags Email Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.GetCampaignRequest{UUID: c.Params("uuid"), InstitutionID: institutionID}

	result, err := h.campaignFlow.GetCampaign(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Failed to get campaign", "CAMPAIGN_GET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// UpdateCampaign handles updating a draft or scheduled campaign
// @Summary Update Email Campaign
// @Tags Email Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.UpdateCampaignRequest true "Email campaign update data"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign updated successfully"
// @Router /api/v1/campaigns/{uuid} [patch]
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", collectValidationErrors(err))
	}

	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}
	req.UUID = c.Params("uuid")
	req.InstitutionID = institutionID

	result, err := h.campaignFlow.UpdateCampaign(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign update failed", "CAMPAIGN_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// DeleteCampaign handles deleting a campaign
// @Summary Delete Email Campaign
// @Tags Email Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse "Campaign deleted successfully"
// @Router /api/v1/campaigns/{uuid} [delete]
func (h *CampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.DeleteCampaignRequest{UUID: c.Params("uuid"), InstitutionID: institutionID}

	if err := h.campaignFlow.DeleteCampaign(h.createRequestContext(c), &req); err != nil {
		return h.businessErrorResponse(c, err, "Campaign deletion failed", "CAMPAIGN_DELETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign deleted successfully", nil)
}

// DuplicateCampaign handles copying a campaign into a new draft
// @Summary Duplicate Email Campaign
// @Tags Email Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign duplicated successfully"
// @Router /api/v1/campaigns/{uuid}/duplicate [post]
func (h *CampaignHandler) DuplicateCampaign(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.DuplicateCampaignRequest{
		UUID:          c.Params("uuid"),
		InstitutionID: institutionID,
		CreatedByID:   h.userID(c),
	}

	result, err := h.campaignFlow.DuplicateCampaign(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign duplication failed", "CAMPAIGN_DUPLICATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign duplicated successfully", result)
}

// SendCampaign handles starting a campaign send
// @Summary Send Email Campaign
// @Tags Email Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 202 {object} dto.APIResponse{data=dto.SendCampaignResponse} "Campaign send started"
// @Failure 409 {object} dto.APIResponse "Campaign is not sendable"
// @Router /api/v1/campaigns/{uuid}/send [post]
func (h *CampaignHandler) SendCampaign(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.SendCampaignRequest{UUID: c.Params("uuid"), InstitutionID: institutionID}

	result, err := h.campaignFlow.SendCampaign(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign send failed", "CAMPAIGN_SEND_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Campaign send started", result)
}

// EstimateAudience handles previewing the audience size for a filter
// @Summary Estimate Campaign Audience
// @Tags Email Campaigns
// @Accept json
// @Produce json
// @Param request body dto.EstimateAudienceRequest true "Audience filter"
// @Success 200 {object} dto.APIResponse{data=dto.EstimateAudienceResponse} "Audience estimated successfully"
// @Router /api/v1/campaigns/estimate-audience [post]
func (h *CampaignHandler) EstimateAudience(c fiber.Ctx) error {
	var req dto.EstimateAudienceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", collectValidationErrors(err))
	}

	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}
	req.InstitutionID = institutionID

	result, err := h.campaignFlow.EstimateAudience(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Audience estimation failed", "AUDIENCE_ESTIMATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audience estimated successfully", result)
}

// GetCampaignStats handles recomputing and returning campaign statistics
// @Summary Get Email Campaign Statistics
// @Tags Email Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStatsResponse} "Statistics retrieved successfully"
// @Router /api/v1/campaigns/{uuid}/stats [get]
func (h *CampaignHandler) GetCampaignStats(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.GetCampaignRequest{UUID: c.Params("uuid"), InstitutionID: institutionID}

	result, err := h.campaignFlow.GetStats(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Failed to get campaign statistics", "CAMPAIGN_STATS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign statistics retrieved successfully", result)
}

// ListRecipients handles listing a campaign's recipient ledger
// @Summary List Campaign Recipients
// @Tags Email Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param status query string false "Filter by recipient status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListRecipientsResponse} "Recipients retrieved successfully"
// @Router /api/v1/campaigns/{uuid}/recipients [get]
func (h *CampaignHandler) ListRecipients(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.ListRecipientsRequest{UUID: c.Params("uuid"), InstitutionID: institutionID}
	req.Page, _ = strconv.Atoi(c.Query("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.Query("page_size", "20"))
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", collectValidationErrors(err))
	}

	result, err := h.campaignFlow.ListRecipients(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Failed to list recipients", "RECIPIENT_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved successfully", result)
}

// ExportRecipients handles exporting a campaign's ledger as an Excel file
// @Summary Export Campaign Recipients
// @Tags Email Campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Campaign UUID"
// @Success 200 {file} binary "Excel export of the recipient ledger"
// @Router /api/v1/campaigns/{uuid}/recipients/export [get]
func (h *CampaignHandler) ExportRecipients(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.GetCampaignRequest{UUID: c.Params("uuid"), InstitutionID: institutionID}

	filename, content, err := h.campaignFlow.ExportRecipients(h.createRequestContext(c), &req)
	if err != nil {
		return h.businessErrorResponse(c, err, "Failed to export recipients", "RECIPIENT_EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(content)
}
