// Package businessflow contains the business logic for the application.
package businessflow

const (
	RequestIDKey  = "X-Request-ID"
	CancelFuncKey = "CancelFunc"
)

// ClientMetadata holds client-related information for audit trails and
// suppression provenance
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// CampaignDispatcher hands a campaign that just entered sending off to the
// background delivery worker. Implemented by the scheduler; the flow never
// blocks the request on delivery.
type CampaignDispatcher interface {
	Dispatch(campaignID uint)
}
