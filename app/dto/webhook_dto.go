package dto

// WebhookAckResponse acknowledges an ingested provider event. The endpoint
// always acknowledges; received reports whether the event could be
// correlated to a campaign.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}
