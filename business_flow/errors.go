// Package businessflow contains the core business logic and use cases for email campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignAccessDenied     = errors.New("campaign access denied")
	ErrCampaignNotEditable      = errors.New("campaign can no longer be edited")
	ErrCampaignNotDeletable     = errors.New("campaign cannot be deleted while sending")
	ErrCampaignNotSendable      = errors.New("campaign is not in a sendable status")
	ErrCampaignNameRequired     = errors.New("campaign name is required")
	ErrCampaignSubjectRequired  = errors.New("campaign subject is required")
	ErrCampaignContentRequired  = errors.New("campaign content is required")
	ErrCampaignSenderRequired   = errors.New("campaign sender name and email are required")
	ErrCampaignAudienceRequired = errors.New("campaign audience is required")
	ErrInvalidAudienceSource    = errors.New("invalid audience source")
	ErrInvalidCampaignStatus    = errors.New("invalid campaign status")
	ErrInvalidProvider          = errors.New("invalid campaign provider")
	ErrScheduleTimeInPast       = errors.New("schedule time must be in the future")
	ErrEmptyAudience            = errors.New("resolved audience is empty")

	// Suppression-related errors
	ErrSuppressionEmailRequired = errors.New("email address is required")
	ErrSuppressionEmailInvalid  = errors.New("email address is invalid")
	ErrSuppressionNotFound      = errors.New("suppression entry not found")

	// Unsubscribe token errors
	ErrUnsubscribeTokenInvalid = errors.New("unsubscribe token is invalid")

	// Webhook errors
	ErrWebhookSignatureInvalid = errors.New("webhook signature is invalid")
	ErrWebhookPayloadInvalid   = errors.New("webhook payload is invalid")

	// Delivery errors
	ErrDailyQuotaExhausted = errors.New("daily send quota exhausted")

	// Institution errors
	ErrInstitutionNotFound = errors.New("institution not found")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignNotEditable(err error) bool {
	return errors.Is(err, ErrCampaignNotEditable)
}

func IsCampaignNotDeletable(err error) bool {
	return errors.Is(err, ErrCampaignNotDeletable)
}

func IsCampaignNotSendable(err error) bool {
	return errors.Is(err, ErrCampaignNotSendable)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrCampaignNameRequired) ||
		errors.Is(err, ErrCampaignSubjectRequired) ||
		errors.Is(err, ErrCampaignContentRequired) ||
		errors.Is(err, ErrCampaignSenderRequired) ||
		errors.Is(err, ErrCampaignAudienceRequired) ||
		errors.Is(err, ErrInvalidAudienceSource) ||
		errors.Is(err, ErrInvalidCampaignStatus) ||
		errors.Is(err, ErrInvalidProvider) ||
		errors.Is(err, ErrScheduleTimeInPast) ||
		errors.Is(err, ErrSuppressionEmailRequired) ||
		errors.Is(err, ErrSuppressionEmailInvalid)
}

func IsEmptyAudience(err error) bool {
	return errors.Is(err, ErrEmptyAudience)
}

func IsSuppressionNotFound(err error) bool {
	return errors.Is(err, ErrSuppressionNotFound)
}

func IsUnsubscribeTokenInvalid(err error) bool {
	return errors.Is(err, ErrUnsubscribeTokenInvalid)
}

func IsWebhookSignatureInvalid(err error) bool {
	return errors.Is(err, ErrWebhookSignatureInvalid)
}

func IsWebhookPayloadInvalid(err error) bool {
	return errors.Is(err, ErrWebhookPayloadInvalid)
}

func IsDailyQuotaExhausted(err error) bool {
	return errors.Is(err, ErrDailyQuotaExhausted)
}
