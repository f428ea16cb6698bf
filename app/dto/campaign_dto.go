package dto

import (
	"time"
)

// AudienceCriteria represents source-specific audience filter criteria
type AudienceCriteria struct {
	Status        []string `json:"status,omitempty"`
	Priority      []string `json:"priority,omitempty"`
	LeadSource    []string `json:"leadSource,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CreatedAtFrom *string  `json:"createdAtFrom,omitempty"`
	CreatedAtTo   *string  `json:"createdAtTo,omitempty"`
}

// AudienceFilter represents the declarative audience description on requests
type AudienceFilter struct {
	Source  string           `json:"source" validate:"required,oneof=contacts leads"`
	Filters AudienceCriteria `json:"filters"`
}

// CreateCampaignRequest represents the request to create a new email campaign
type CreateCampaignRequest struct {
	InstitutionID uint            `json:"-"`
	CreatedByID   *uint           `json:"-"`
	Name          string          `json:"name" validate:"required,min=1,max=200"`
	Subject       string          `json:"subject" validate:"required,min=1,max=255"`
	PreviewText   *string         `json:"preview_text,omitempty" validate:"omitempty,max=255"`
	SenderName    string          `json:"sender_name" validate:"required,min=1,max=100"`
	SenderEmail   string          `json:"sender_email" validate:"required,email"`
	HTMLContent   string          `json:"html_content" validate:"required"`
	Provider      *string         `json:"provider,omitempty" validate:"omitempty,oneof=brevo ses resend"`
	ScheduledAt   *time.Time      `json:"scheduled_at,omitempty"`
	Audience      *AudienceFilter `json:"audience_filters" validate:"required"`
	Tags          []string        `json:"tags,omitempty"`
}

// CreateCampaignResponse represents the response to create a new email campaign
type CreateCampaignResponse struct {
	UUID                string `json:"uuid"`
	Status              string `json:"status"`
	EstimatedRecipients int    `json:"estimated_recipients"`
	CreatedAt           string `json:"created_at"`
}

// UpdateCampaignRequest represents the request to update an existing email campaign
type UpdateCampaignRequest struct {
	UUID          string          `json:"-"`
	InstitutionID uint            `json:"-"`
	Name          *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Subject       *string         `json:"subject,omitempty" validate:"omitempty,min=1,max=255"`
	PreviewText   *string         `json:"preview_text,omitempty" validate:"omitempty,max=255"`
	SenderName    *string         `json:"sender_name,omitempty" validate:"omitempty,min=1,max=100"`
	SenderEmail   *string         `json:"sender_email,omitempty" validate:"omitempty,email"`
	HTMLContent   *string         `json:"html_content,omitempty"`
	Provider      *string         `json:"provider,omitempty" validate:"omitempty,oneof=brevo ses resend"`
	Status        *string         `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled"`
	ScheduledAt   *time.Time      `json:"scheduled_at,omitempty"`
	Audience      *AudienceFilter `json:"audience_filters,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
}

// CampaignResponse represents an email campaign in responses
type CampaignResponse struct {
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	PreviewText *string    `json:"preview_text,omitempty"`
	SenderName  string     `json:"sender_name"`
	SenderEmail string     `json:"sender_email"`
	HTMLContent string     `json:"html_content,omitempty"`
	Status      string     `json:"status"`
	Provider    string     `json:"provider"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Audience    *AudienceFilter `json:"audience_filters,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	TotalRecipients  int `json:"total_recipients"`
	SentCount        int `json:"sent_count"`
	FailedCount      int `json:"failed_count"`
	OpenCount        int `json:"open_count"`
	ClickCount       int `json:"click_count"`
	BounceCount      int `json:"bounce_count"`
	UnsubscribeCount int `json:"unsubscribe_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GetCampaignRequest represents the request to get an existing email campaign
type GetCampaignRequest struct {
	UUID          string `json:"-"`
	InstitutionID uint   `json:"-"`
}

// ListCampaignsRequest represents the request to list an institution's campaigns
type ListCampaignsRequest struct {
	InstitutionID uint    `json:"-"`
	Status        *string `query:"status" validate:"omitempty,oneof=draft scheduled sending sent failed"`
	Search        *string `query:"search" validate:"omitempty,max=200"`
	Page          int     `query:"page" validate:"omitempty,min=1"`
	PageSize      int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCampaignsResponse represents the paginated campaign list
type ListCampaignsResponse struct {
	Items      []CampaignResponse `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// DeleteCampaignRequest represents the request to delete an email campaign
type DeleteCampaignRequest struct {
	UUID          string `json:"-"`
	InstitutionID uint   `json:"-"`
}

// DuplicateCampaignRequest represents the request to duplicate a campaign
type DuplicateCampaignRequest struct {
	UUID          string `json:"-"`
	InstitutionID uint   `json:"-"`
	CreatedByID   *uint  `json:"-"`
}

// SendCampaignRequest represents the request to start sending a campaign
type SendCampaignRequest struct {
	UUID          string `json:"-"`
	InstitutionID uint   `json:"-"`
}

// SendCampaignResponse represents the response to a send request
type SendCampaignResponse struct {
	UUID            string `json:"uuid"`
	Status          string `json:"status"`
	TotalRecipients int    `json:"total_recipients"`
}

// EstimateAudienceRequest represents the request to preview an audience size
type EstimateAudienceRequest struct {
	InstitutionID uint            `json:"-"`
	Audience      *AudienceFilter `json:"audience_filters" validate:"required"`
}

// EstimateAudienceResponse represents the audience size preview
type EstimateAudienceResponse struct {
	TotalRecipients int `json:"total_recipients"`
}

// CampaignStatsRates holds engagement rates relative to sent count
type CampaignStatsRates struct {
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	BounceRate      float64 `json:"bounce_rate"`
	UnsubscribeRate float64 `json:"unsubscribe_rate"`
}

// EmailEventResponse represents one provider event in responses
type EmailEventResponse struct {
	Email          string    `json:"email"`
	EventType      string    `json:"event_type"`
	EventTimestamp time.Time `json:"event_timestamp"`
}

// CampaignStatsResponse represents recomputed campaign statistics
type CampaignStatsResponse struct {
	UUID             string               `json:"uuid"`
	Status           string               `json:"status"`
	TotalRecipients  int                  `json:"total_recipients"`
	SentCount        int                  `json:"sent_count"`
	FailedCount      int                  `json:"failed_count"`
	OpenCount        int                  `json:"open_count"`
	ClickCount       int                  `json:"click_count"`
	BounceCount      int                  `json:"bounce_count"`
	UnsubscribeCount int                  `json:"unsubscribe_count"`
	Rates            CampaignStatsRates   `json:"rates"`
	RecentEvents     []EmailEventResponse `json:"recent_events"`
}

// ListRecipientsRequest represents the request to list a campaign's ledger
type ListRecipientsRequest struct {
	UUID          string  `json:"-"`
	InstitutionID uint    `json:"-"`
	Status        *string `query:"status" validate:"omitempty,oneof=queued sent failed"`
	Page          int     `query:"page" validate:"omitempty,min=1"`
	PageSize      int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// RecipientResponse represents one recipient ledger entry in responses
type RecipientResponse struct {
	Email             string     `json:"email"`
	Name              *string    `json:"name,omitempty"`
	Status            string     `json:"status"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}

// ListRecipientsResponse represents the paginated recipient ledger
type ListRecipientsResponse struct {
	Items      []RecipientResponse `json:"items"`
	Pagination PaginationResponse  `json:"pagination"`
}
