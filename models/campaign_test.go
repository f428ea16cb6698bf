package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    CampaignStatus
		to      CampaignStatus
		allowed bool
	}{
		{"draft to scheduled", CampaignStatusDraft, CampaignStatusScheduled, true},
		{"draft to sending", CampaignStatusDraft, CampaignStatusSending, true},
		{"draft to draft", CampaignStatusDraft, CampaignStatusDraft, true},
		{"draft to sent", CampaignStatusDraft, CampaignStatusSent, false},
		{"draft to failed", CampaignStatusDraft, CampaignStatusFailed, false},
		{"scheduled to draft", CampaignStatusScheduled, CampaignStatusDraft, true},
		{"scheduled to sending", CampaignStatusScheduled, CampaignStatusSending, true},
		{"scheduled to sent", CampaignStatusScheduled, CampaignStatusSent, false},
		{"sending to sent", CampaignStatusSending, CampaignStatusSent, true},
		{"sending to failed", CampaignStatusSending, CampaignStatusFailed, true},
		{"sending to draft", CampaignStatusSending, CampaignStatusDraft, false},
		{"sent is terminal", CampaignStatusSent, CampaignStatusSending, false},
		{"failed is terminal", CampaignStatusFailed, CampaignStatusSending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			campaign := &EmailCampaign{Status: tt.from}
			assert.Equal(t, tt.allowed, campaign.CanTransitionTo(tt.to))
		})
	}
}

func TestSendableStatuses(t *testing.T) {
	statuses := SendableStatuses()
	assert.ElementsMatch(t, []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled}, statuses)
}

func TestCampaignEditability(t *testing.T) {
	assert.True(t, (&EmailCampaign{Status: CampaignStatusDraft}).IsEditable())
	assert.True(t, (&EmailCampaign{Status: CampaignStatusScheduled}).IsEditable())
	assert.False(t, (&EmailCampaign{Status: CampaignStatusSending}).IsEditable())
	assert.False(t, (&EmailCampaign{Status: CampaignStatusSent}).IsEditable())
	assert.False(t, (&EmailCampaign{Status: CampaignStatusFailed}).IsEditable())
}

func TestCampaignDeletability(t *testing.T) {
	assert.False(t, (&EmailCampaign{Status: CampaignStatusSending}).IsDeletable())
	assert.True(t, (&EmailCampaign{Status: CampaignStatusDraft}).IsDeletable())
	assert.True(t, (&EmailCampaign{Status: CampaignStatusSent}).IsDeletable())
}

func TestCampaignStatusValidation(t *testing.T) {
	assert.True(t, CampaignStatusDraft.Valid())
	assert.True(t, CampaignStatusSent.Valid())
	assert.False(t, CampaignStatus("archived").Valid())
	assert.False(t, CampaignStatus("").Valid())
}

func TestCampaignStatusScanValue(t *testing.T) {
	var s CampaignStatus
	require.NoError(t, s.Scan("sending"))
	assert.Equal(t, CampaignStatusSending, s)

	require.NoError(t, s.Scan([]byte("sent")))
	assert.Equal(t, CampaignStatusSent, s)

	require.NoError(t, s.Scan(nil))
	assert.Equal(t, CampaignStatus(""), s)

	assert.Error(t, s.Scan(42))

	v, err := CampaignStatusDraft.Value()
	require.NoError(t, err)
	assert.Equal(t, "draft", v)

	_, err = CampaignStatus("bogus").Value()
	assert.Error(t, err)
}

func TestAudienceFilterRoundTrip(t *testing.T) {
	original := AudienceFilter{
		Source: AudienceSourceLeads,
		Filters: AudienceCriteria{
			Status:     []string{LeadStatusNew, LeadStatusQualified},
			LeadSource: []string{"webinar"},
		},
	}

	raw, err := original.Value()
	require.NoError(t, err)

	var decoded AudienceFilter
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, original, decoded)

	require.NoError(t, decoded.Scan(nil))
	assert.Equal(t, AudienceFilter{}, decoded)

	assert.Error(t, decoded.Scan(42))
}

func TestAudienceSourceValidation(t *testing.T) {
	assert.True(t, AudienceSourceContacts.Valid())
	assert.True(t, AudienceSourceLeads.Valid())
	assert.False(t, AudienceSource("segments").Valid())
}

func TestBeforeCreateDefaults(t *testing.T) {
	campaign := &EmailCampaign{Name: "Spring launch"}
	require.NoError(t, campaign.BeforeCreate())

	assert.NotEqual(t, campaign.UUID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, CampaignStatusDraft, campaign.Status)
	assert.Equal(t, CampaignProviderBrevo, campaign.Provider)
	assert.False(t, campaign.CreatedAt.IsZero())
}
