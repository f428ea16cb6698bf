package businessflow

import (
	"context"

	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/repository"
	"github.com/harborcrm/harbor-backend/utils"
)

// Recipient is one resolved audience member
type Recipient struct {
	Email     string  `json:"email"`
	Name      *string `json:"name,omitempty"`
	ContactID *uint   `json:"contact_id,omitempty"`
	LeadID    *uint   `json:"lead_id,omitempty"`
}

// AudienceFlow resolves a declarative audience filter to concrete recipients.
// Resolution is evaluated fresh on every call; results are never cached.
type AudienceFlow interface {
	Resolve(ctx context.Context, institutionID uint, filter models.AudienceFilter) ([]Recipient, error)
	Estimate(ctx context.Context, institutionID uint, filter models.AudienceFilter) (int, error)
}

// AudienceFlowImpl implements the audience resolution flow
type AudienceFlowImpl struct {
	contactRepo      repository.ContactRepository
	leadRepo         repository.LeadRepository
	unsubscribedRepo repository.UnsubscribedEmailRepository
}

// NewAudienceFlow creates a new audience flow instance
func NewAudienceFlow(
	contactRepo repository.ContactRepository,
	leadRepo repository.LeadRepository,
	unsubscribedRepo repository.UnsubscribedEmailRepository,
) AudienceFlow {
	return &AudienceFlowImpl{
		contactRepo:      contactRepo,
		leadRepo:         leadRepo,
		unsubscribedRepo: unsubscribedRepo,
	}
}

// Resolve evaluates the filter against its source, drops suppressed
// addresses, and deduplicates case-insensitively keeping the first
// occurrence.
func (f *AudienceFlowImpl) Resolve(ctx context.Context, institutionID uint, filter models.AudienceFilter) ([]Recipient, error) {
	if !filter.Source.Valid() {
		return nil, NewBusinessError("INVALID_AUDIENCE_SOURCE", "Audience source must be contacts or leads", ErrInvalidAudienceSource)
	}

	suppressed, err := f.unsubscribedRepo.EmailSet(ctx, institutionID)
	if err != nil {
		return nil, NewBusinessError("SUPPRESSION_LOOKUP_FAILED", "Failed to load suppression list", err)
	}

	var candidates []Recipient
	switch filter.Source {
	case models.AudienceSourceContacts:
		contacts, err := f.contactRepo.ByAudience(ctx, institutionID, filter.Filters)
		if err != nil {
			return nil, NewBusinessError("AUDIENCE_RESOLUTION_FAILED", "Failed to resolve contact audience", err)
		}
		candidates = make([]Recipient, 0, len(contacts))
		for _, c := range contacts {
			if c.Email == nil {
				continue
			}
			id := c.ID
			name := c.Name
			candidates = append(candidates, Recipient{
				Email:     *c.Email,
				Name:      &name,
				ContactID: &id,
			})
		}
	case models.AudienceSourceLeads:
		leads, err := f.leadRepo.ByAudience(ctx, institutionID, filter.Filters)
		if err != nil {
			return nil, NewBusinessError("AUDIENCE_RESOLUTION_FAILED", "Failed to resolve lead audience", err)
		}
		candidates = make([]Recipient, 0, len(leads))
		for _, l := range leads {
			if l.Email == nil {
				continue
			}
			id := l.ID
			name := l.Name
			candidates = append(candidates, Recipient{
				Email:  *l.Email,
				Name:   &name,
				LeadID: &id,
			})
		}
	}

	// Suppression filter, then first-wins deduplication
	seen := make(map[string]struct{}, len(candidates))
	recipients := make([]Recipient, 0, len(candidates))
	for _, r := range candidates {
		key := utils.NormalizeEmail(r.Email)
		if key == "" {
			continue
		}
		if _, ok := suppressed[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		recipients = append(recipients, r)
	}

	return recipients, nil
}

// Estimate returns the size the audience would resolve to right now
func (f *AudienceFlowImpl) Estimate(ctx context.Context, institutionID uint, filter models.AudienceFilter) (int, error) {
	recipients, err := f.Resolve(ctx, institutionID, filter)
	if err != nil {
		return 0, err
	}
	return len(recipients), nil
}
