package adapters

import (
	"context"

	"rwaledger/internal/verification/models"
	verifier "rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
)

// EventVerifierAssigned is the webhook event sent to each assigned verifier.
const EventVerifierAssigned = "VERIFIER_ASSIGNED"

// Publisher is the webhook dispatcher.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// AssignmentNotice is the payload of EventVerifierAssigned.
type AssignmentNotice struct {
	VerifierID   id.VerifierID       `json:"verifierId"`
	RequestID    id.RequestID        `json:"requestId"`
	SubjectID    id.TokenID          `json:"subjectId"`
	AssetType    string              `json:"assetType"`
	TrustLevel   verifier.TrustLevel `json:"trustLevel"`
	RequiredTier verifier.Tier       `json:"requiredTier"`
}

// WebhookNotifier implements the coordinator's Notifier port over webhooks.
type WebhookNotifier struct {
	publisher Publisher
}

func NewWebhookNotifier(publisher Publisher) *WebhookNotifier {
	return &WebhookNotifier{publisher: publisher}
}

func (n *WebhookNotifier) NotifyAssigned(ctx context.Context, verifierID id.VerifierID, request *models.Request) error {
	return n.publisher.Publish(ctx, EventVerifierAssigned, AssignmentNotice{
		VerifierID:   verifierID,
		RequestID:    request.ID,
		SubjectID:    request.SubjectID,
		AssetType:    request.AssetType,
		TrustLevel:   request.TrustLevel,
		RequiredTier: request.RequiredTier,
	})
}
