package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harborcrm/harbor-backend/utils"
)

// Unsubscribe token error constants
var (
	ErrUnsubscribeTokenMalformed = errors.New("unsubscribe token is malformed")
	ErrUnsubscribeTokenTampered  = errors.New("unsubscribe token signature mismatch")
)

// UnsubscribePayload is what an unsubscribe link carries
type UnsubscribePayload struct {
	Email        string `json:"email"`
	CampaignUUID string `json:"campaignId"`
	IssuedAt     int64  `json:"ts"`
}

// UnsubscribeTokenService encodes and verifies HMAC-signed unsubscribe tokens.
// Token format: base64url(payload) "." base64url(hmac-sha256(payload)).
type UnsubscribeTokenService interface {
	Encode(email, campaignUUID string) (string, error)
	Decode(token string) (*UnsubscribePayload, error)
	BuildURL(baseURL, email, campaignUUID string) (string, error)
}

// UnsubscribeTokenServiceImpl implements UnsubscribeTokenService
type UnsubscribeTokenServiceImpl struct {
	secret []byte
}

// NewUnsubscribeTokenService creates a new unsubscribe token service
func NewUnsubscribeTokenService(secret string) UnsubscribeTokenService {
	return &UnsubscribeTokenServiceImpl{secret: []byte(secret)}
}

func (s *UnsubscribeTokenServiceImpl) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Encode builds a signed token for the address and campaign
func (s *UnsubscribeTokenServiceImpl) Encode(email, campaignUUID string) (string, error) {
	payload := UnsubscribePayload{
		Email:        utils.NormalizeEmail(email),
		CampaignUUID: campaignUUID,
		IssuedAt:     time.Now().UTC().Unix(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal unsubscribe payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	signature := base64.RawURLEncoding.EncodeToString(s.sign(raw))

	return encoded + "." + signature, nil
}

// Decode verifies the signature and returns the payload
func (s *UnsubscribeTokenServiceImpl) Decode(token string) (*UnsubscribePayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrUnsubscribeTokenMalformed
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrUnsubscribeTokenMalformed
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrUnsubscribeTokenMalformed
	}

	if !hmac.Equal(signature, s.sign(raw)) {
		return nil, ErrUnsubscribeTokenTampered
	}

	var payload UnsubscribePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrUnsubscribeTokenMalformed
	}
	if payload.Email == "" {
		return nil, ErrUnsubscribeTokenMalformed
	}

	return &payload, nil
}

// BuildURL builds the full public unsubscribe URL for an email in a campaign
func (s *UnsubscribeTokenServiceImpl) BuildURL(baseURL, email, campaignUUID string) (string, error) {
	token, err := s.Encode(email, campaignUUID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/v1/unsubscribe/%s", strings.TrimRight(baseURL, "/"), token), nil
}
