package handler

import (
	"time"

	"rwaledger/internal/verifier/models"
)

type RegisterRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Tier           string `json:"tier" validate:"required,oneof=T1 T2 T3 T4"`
	Specialization string `json:"specialization" validate:"required,max=100"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RenewRequest struct {
	Expiry time.Time `json:"expiry" validate:"required"`
}

type ListResponse struct {
	Verifiers []*models.Verifier `json:"verifiers"`
	Count     int                `json:"count"`
}

type RootResponse struct {
	Root string `json:"root"`
}

type VerifyProofResponse struct {
	Valid bool `json:"valid"`
}
