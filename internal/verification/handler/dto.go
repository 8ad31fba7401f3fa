package handler

import (
	"rwaledger/internal/verification/models"
	id "rwaledger/pkg/domain"
)

type CreateRequest struct {
	SubjectID     string `json:"subject_id" validate:"required,max=128"`
	AssetType     string `json:"asset_type" validate:"required,max=64"`
	TrustLevel    string `json:"trust_level" validate:"required"`
	VerifierCount int    `json:"verifier_count" validate:"required,min=1,max=25"`
	// ChangeID optionally binds the request to one VVB change.
	ChangeID string `json:"change_id" validate:"omitempty,uuid"`
}

type SubmitResultRequest struct {
	VerifierID    string `json:"verifier_id" validate:"required"`
	Verified      *bool  `json:"verified" validate:"required"`
	AchievedLevel string `json:"achieved_level"`
	Summary       string `json:"summary" validate:"max=4000"`
}

type ListResponse struct {
	Requests []*models.Request `json:"requests"`
	Count    int               `json:"count"`
}

type OutcomeResponse struct {
	RequestID id.RequestID   `json:"request_id"`
	Outcome   models.Outcome `json:"outcome"`
}
