package dto

import "time"

// AddSuppressionRequest represents the request to suppress an address
type AddSuppressionRequest struct {
	InstitutionID uint    `json:"-"`
	Email         string  `json:"email" validate:"required,email"`
	Reason        *string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

// SuppressionResponse represents one suppression list entry in responses
type SuppressionResponse struct {
	Email              string    `json:"email"`
	Reason             *string   `json:"reason,omitempty"`
	SourceCampaignUUID *string   `json:"source_campaign_uuid,omitempty"`
	UnsubscribedAt     time.Time `json:"unsubscribed_at"`
}

// ListSuppressionsRequest represents the request to list suppression entries
type ListSuppressionsRequest struct {
	InstitutionID uint    `json:"-"`
	Search        *string `query:"search" validate:"omitempty,max=200"`
	Page          int     `query:"page" validate:"omitempty,min=1"`
	PageSize      int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListSuppressionsResponse represents the paginated suppression list
type ListSuppressionsResponse struct {
	Items      []SuppressionResponse `json:"items"`
	Pagination PaginationResponse    `json:"pagination"`
}

// RemoveSuppressionRequest represents the request to re-allow an address
type RemoveSuppressionRequest struct {
	InstitutionID uint   `json:"-"`
	Email         string `json:"-"`
}
