package handler

import (
	"rwaledger/internal/approval/models"
)

type CreateRequest struct {
	ParentTokenID string `json:"parent_token_id" validate:"required,max=128"`
	ChangeType    string `json:"change_type" validate:"required"`
}

type DecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
	Reason   string `json:"reason" validate:"max=1000"`
}

type ListResponse struct {
	Changes []*models.Change `json:"changes"`
	Count   int              `json:"count"`
}
