// Package adapters connects the verification coordinator to the verifier directory.
package adapters

import (
	"context"

	verifier "rwaledger/internal/verifier/models"
	verifierService "rwaledger/internal/verifier/service"
	id "rwaledger/pkg/domain"
)

// VerifierAdapter exposes the verifier service through the coordinator's
// Assigner and PerformanceRecorder ports.
type VerifierAdapter struct {
	service *verifierService.Service
}

func NewVerifierAdapter(service *verifierService.Service) *VerifierAdapter {
	return &VerifierAdapter{service: service}
}

func (a *VerifierAdapter) MinimumTierFor(level verifier.TrustLevel) (verifier.Tier, error) {
	return a.service.MinimumTierFor(level)
}

func (a *VerifierAdapter) AssignVerifiers(ctx context.Context, requiredTier verifier.Tier, assetType string, count int) ([]id.VerifierID, error) {
	vs, err := a.service.AssignVerifiers(ctx, requiredTier, assetType, count)
	if err != nil {
		return nil, err
	}
	ids := make([]id.VerifierID, len(vs))
	for i, v := range vs {
		ids[i] = v.ID
	}
	return ids, nil
}

func (a *VerifierAdapter) RecordPerformance(ctx context.Context, verifierID id.VerifierID, perf verifier.Performance) error {
	_, err := a.service.RecordPerformance(ctx, verifierID, perf)
	return err
}
