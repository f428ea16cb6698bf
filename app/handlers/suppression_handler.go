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

// SuppressionHandlerInterface defines the contract for suppression list handlers
type SuppressionHandlerInterface interface {
	ListSuppressions(c fiber.Ctx) error
	AddSuppression(c fiber.Ctx) error
	RemoveSuppression(c fiber.Ctx) error
}

// SuppressionHandler handles suppression list HTTP requests
type SuppressionHandler struct {
	suppressionFlow businessflow.SuppressionFlow
	validator       *validator.Validate
}

// NewSuppressionHandler creates a new suppression list handler
func NewSuppressionHandler(suppressionFlow businessflow.SuppressionFlow) *SuppressionHandler {
	return &SuppressionHandler{
		suppressionFlow: suppressionFlow,
		validator:       validator.New(),
	}
}

func (h *SuppressionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SuppressionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *SuppressionHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, businessflow.CancelFuncKey, cancel)
	return ctx
}

func (h *SuppressionHandler) institutionID(c fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("institution_id").(uint)
	return id, ok
}

// ListSuppressions handles listing the institution's suppression list
// @Summary List Suppressed Emails
// @Tags Suppression List
// @Produce json
// @Param search query string false "Filter by address substring"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListSuppressionsResponse} "Suppression list retrieved successfully"
// @Router /api/v1/campaigns/settings/unsubscribed [get]
func (h *SuppressionHandler) ListSuppressions(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.ListSuppressionsRequest{InstitutionID: institutionID}
	req.Page, _ = strconv.Atoi(c.Query("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.Query("page_size", "20"))
	if search := c.Query("search"); search != "" {
		req.Search = &search
	}

	result, err := h.suppressionFlow.ListSuppressions(h.createRequestContext(c), &req)
	if err != nil {
		log.Println("Failed to list suppressions", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list suppressions", "SUPPRESSION_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Suppression list retrieved successfully", result)
}

// AddSuppression handles manually suppressing an address
// @Summary Add Suppressed Email
// @Tags Suppression List
// @Accept json
// @Produce json
// @Param request body dto.AddSuppressionRequest true "Address to suppress"
// @Success 201 {object} dto.APIResponse{data=dto.SuppressionResponse} "Email suppressed successfully"
// @Router /api/v1/campaigns/settings/unsubscribed [post]
func (h *SuppressionHandler) AddSuppression(c fiber.Ctx) error {
	var req dto.AddSuppressionRequest
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

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.suppressionFlow.AddSuppression(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
		}
		log.Println("Failed to suppress email", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to suppress email", "SUPPRESSION_ADD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Email suppressed successfully", result)
}

// RemoveSuppression handles re-allowing an address
// @Summary Remove Suppressed Email
// @Tags Suppression List
// @Produce json
// @Param email path string true "Suppressed address"
// @Success 200 {object} dto.APIResponse "Email removed from suppression list"
// @Failure 404 {object} dto.APIResponse "Email is not suppressed"
// @Router /api/v1/campaigns/settings/unsubscribed/{email} [delete]
func (h *SuppressionHandler) RemoveSuppression(c fiber.Ctx) error {
	institutionID, ok := h.institutionID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Institution not found in context", "MISSING_INSTITUTION_ID", nil)
	}

	req := dto.RemoveSuppressionRequest{
		InstitutionID: institutionID,
		Email:         c.Params("email"),
	}

	if err := h.suppressionFlow.RemoveSuppression(h.createRequestContext(c), &req); err != nil {
		if businessflow.IsSuppressionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Email is not on the suppression list", "SUPPRESSION_NOT_FOUND", nil)
		}
		if businessflow.IsValidationError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
		}
		log.Println("Failed to remove suppression", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove suppression entry", "SUPPRESSION_REMOVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Email removed from suppression list", nil)
}
