package testing

import (
	"context"

	"github.com/google/uuid"

	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/utils"
)

// NewTestContact builds a contact with an email address assigned
func NewTestContact(id, institutionID uint, name, email string) *models.Contact {
	return &models.Contact{
		ID:            id,
		InstitutionID: institutionID,
		Name:          name,
		Email:         &email,
		CreatedAt:     utils.UTCNow(),
	}
}

// NewTestLead builds a lead with an email address assigned
func NewTestLead(id, institutionID uint, name, email string) *models.Lead {
	return &models.Lead{
		ID:            id,
		InstitutionID: institutionID,
		Name:          name,
		Email:         &email,
		CreatedAt:     utils.UTCNow(),
	}
}

// NewTestCampaign builds a draft campaign targeting all contacts
func NewTestCampaign(institutionID uint, name string) *models.EmailCampaign {
	return &models.EmailCampaign{
		UUID:          uuid.New(),
		InstitutionID: institutionID,
		Name:          name,
		Subject:       "Hello from " + name,
		SenderName:    "Harbor Tests",
		SenderEmail:   "noreply@harbor.test",
		HTMLContent:   "<p>Hi {{name}}</p>",
		Status:        models.CampaignStatusDraft,
		Provider:      models.CampaignProviderBrevo,
		Audience: models.AudienceFilter{
			Source: models.AudienceSourceContacts,
		},
		CreatedAt: utils.UTCNow(),
	}
}

// SeedCampaign saves a test campaign and returns it with its assigned ID
func SeedCampaign(ctx context.Context, repo *FakeCampaignRepository, institutionID uint, name string, status models.CampaignStatus) (*models.EmailCampaign, error) {
	campaign := NewTestCampaign(institutionID, name)
	campaign.Status = status
	if err := repo.Save(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// SeedRecipients queues n recipients for a campaign
func SeedRecipients(ctx context.Context, repo *FakeRecipientRepository, campaignID uint, emails []string) ([]*models.CampaignRecipient, error) {
	recipients := make([]*models.CampaignRecipient, 0, len(emails))
	for _, email := range emails {
		rec := &models.CampaignRecipient{
			CampaignID: campaignID,
			Email:      utils.NormalizeEmail(email),
			Status:     models.RecipientStatusQueued,
			CreatedAt:  utils.UTCNow(),
		}
		if err := repo.Save(ctx, rec); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, nil
}
