package handler

import (
	"rwaledger/internal/evolution/models"
	id "rwaledger/pkg/domain"
)

type SnapshotSeed struct {
	TokenType string         `json:"token_type" validate:"required"`
	Data      map[string]any `json:"data" validate:"required"`
}

type InitializeRequest struct {
	PrimaryID   string         `json:"primary_id" validate:"required,max=128"`
	CompositeID string         `json:"composite_id" validate:"required,max=128"`
	Snapshots   []SnapshotSeed `json:"snapshots" validate:"dive"`
}

type EvolveRequest struct {
	TokenType string         `json:"token_type" validate:"required"`
	Data      map[string]any `json:"data" validate:"required"`
	Reason    string         `json:"reason"`
	ChangeID  string         `json:"change_id"`
}

type ModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type ListResponse struct {
	Chains []*models.Chain `json:"chains"`
	Count  int             `json:"count"`
}

type IntegrityResponse struct {
	CompositeID    id.TokenID `json:"composite_id"`
	IntegrityValid bool       `json:"integrity_valid"`
	LinksValid     bool       `json:"links_valid"`
	Detail         string     `json:"detail,omitempty"`
}
