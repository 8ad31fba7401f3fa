package service

import (
	"context"
	"sort"

	"rwaledger/internal/verifier/merkle"
	"rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/hashing"
)

// leaf commits to a verifier's identity, tier and specialization.
func leaf(v *models.Verifier) string {
	return hashing.SHA256Hex([]byte(string(v.ID) + "|" + string(v.Tier) + "|" + models.NormalizeSpecialization(v.Specialization)))
}

// activeSet returns ACTIVE verifiers ordered by ID, the canonical leaf order.
func (s *Service) activeSet(ctx context.Context) ([]*models.Verifier, error) {
	active, err := s.store.ListActive(ctx, models.TierT1)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active verifiers")
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

// RootHash is the Merkle root over the current ACTIVE set. Empty when the set is empty.
func (s *Service) RootHash(ctx context.Context) (string, error) {
	active, err := s.activeSet(ctx)
	if err != nil {
		return "", err
	}
	leaves := make([]string, len(active))
	for i, v := range active {
		leaves[i] = leaf(v)
	}
	root, _ := merkle.Build(leaves)
	return root, nil
}

// MembershipProof proves that verifierID belongs to the current ACTIVE set.
func (s *Service) MembershipProof(ctx context.Context, verifierID id.VerifierID) (*merkle.Proof, error) {
	active, err := s.activeSet(ctx)
	if err != nil {
		return nil, err
	}
	leaves := make([]string, len(active))
	index := -1
	for i, v := range active {
		leaves[i] = leaf(v)
		if v.ID == verifierID {
			index = i
		}
	}
	if index < 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "verifier is not in the active set")
	}
	_, proofs := merkle.Build(leaves)
	proof := proofs[index]
	return &proof, nil
}

// VerifyProof checks proof against the current root, so a proof issued
// before the set changed no longer verifies.
func (s *Service) VerifyProof(ctx context.Context, proof merkle.Proof) (bool, error) {
	root, err := s.RootHash(ctx)
	if err != nil {
		return false, err
	}
	return merkle.Verify(proof, root), nil
}
