package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/verification/adapters"
	"rwaledger/internal/verification/models"
	"rwaledger/internal/verification/service"
	"rwaledger/internal/verification/store"
	verifier "rwaledger/internal/verifier/models"
	verifierService "rwaledger/internal/verifier/service"
	verifierStore "rwaledger/internal/verifier/store"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/testutil"
)

type fixture struct {
	router    http.Handler
	verifiers []id.VerifierID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifiers := verifierService.New(verifierStore.NewInMemory())
	f := &fixture{}
	for _, name := range []string{"Harbor Survey", "Keystone Audit", "Atlas Valuers"} {
		v, err := verifiers.Register(ctx, verifierService.RegisterRequest{Name: name, Tier: verifier.TierT3, Specialization: "real_estate"})
		require.NoError(t, err)
		_, err = verifiers.Approve(ctx, v.ID)
		require.NoError(t, err)
		f.verifiers = append(f.verifiers, v.ID)
	}
	adapter := adapters.NewVerifierAdapter(verifiers)
	svc, err := service.New(store.NewInMemory(), adapter, adapter)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, actor id.ActorID) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithActor(testutil.NewJSONRequest(t, method, path, body), string(actor))
	return testutil.DoRequest(f.router, req)
}

func TestVerificationFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/verifications", map[string]any{
		"subject_id":     "CT-100",
		"asset_type":     "real_estate",
		"trust_level":    "certified",
		"verifier_count": 2,
	}, "owner-1")
	created := testutil.DecodeResponse[models.Request](t, rec, http.StatusCreated)
	require.Len(t, created.Assigned, 2)
	path := "/verifications/" + string(created.ID)

	t.Run("another verifier cannot submit for an assignee", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, path+"/results", map[string]any{
			"verifier_id": string(created.Assigned[0]),
			"verified":    true,
		}, "someone-else")
		testutil.AssertError(t, rec, http.StatusForbidden, dErrors.CodeUnauthorizedVerifier)
	})

	t.Run("verified flag is required", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, path+"/results", map[string]any{
			"verifier_id": string(created.Assigned[0]),
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	for _, vid := range created.Assigned {
		rec := f.do(t, http.MethodPost, path+"/results", map[string]any{
			"verifier_id":    string(vid),
			"verified":       true,
			"achieved_level": "CERTIFIED",
			"summary":        "title deed and survey checked against the land registry",
		}, id.ActorID(vid))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	outcome := testutil.DecodeResponse[OutcomeResponse](t, f.do(t, http.MethodGet, path+"/outcome", nil, ""), http.StatusOK)
	assert.Equal(t, models.OutcomeVerified, outcome.Outcome)

	list := testutil.DecodeResponse[ListResponse](t, f.do(t, http.MethodGet, "/verifications?subject=CT-100", nil, ""), http.StatusOK)
	assert.Equal(t, 1, list.Count)
}

func TestRequestForChange(t *testing.T) {
	f := newFixture(t)
	changeID := id.NewChangeID()

	rec := f.do(t, http.MethodPost, "/verifications", map[string]any{
		"subject_id":     "CT-200",
		"asset_type":     "real_estate",
		"trust_level":    "basic",
		"verifier_count": 1,
		"change_id":      changeID.String(),
	}, "owner-1")
	created := testutil.DecodeResponse[models.Request](t, rec, http.StatusCreated)
	require.NotNil(t, created.ChangeID)
	assert.Equal(t, changeID, *created.ChangeID)

	rec = f.do(t, http.MethodPost, "/verifications", map[string]any{
		"subject_id":     "CT-200",
		"asset_type":     "real_estate",
		"trust_level":    "basic",
		"verifier_count": 1,
		"change_id":      "not-a-uuid",
	}, "owner-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown trust level", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/verifications", map[string]any{
			"subject_id": "CT-1", "asset_type": "real_estate", "trust_level": "GALACTIC", "verifier_count": 1,
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not enough qualified verifiers", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/verifications", map[string]any{
			"subject_id": "CT-1", "asset_type": "real_estate", "trust_level": "INSTITUTIONAL", "verifier_count": 1,
		}, "")
		testutil.AssertError(t, rec, http.StatusUnprocessableEntity, dErrors.CodeInsufficientVerifiers)
	})

	t.Run("unknown request", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/verifications/REQ-00000000-9", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
