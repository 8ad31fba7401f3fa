package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/evolution/gate"
	"rwaledger/internal/evolution/models"
	"rwaledger/internal/evolution/service"
	"rwaledger/internal/evolution/store"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/platform/middleware/admin"
	"rwaledger/pkg/requestcontext"
	"rwaledger/pkg/testutil"
)

const adminToken = "operator-secret"

func newChainRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(store.NewInMemory(), gate.New(models.ModeOptional), service.WithLogger(logger))
	require.NoError(t, err)
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any, actor id.ActorID) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req = req.WithContext(requestcontext.WithActorID(context.Background(), actor))
	}
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func initialize(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/chains", InitializeRequest{
		PrimaryID:   "PT-0001",
		CompositeID: "CT-0001",
		Snapshots: []SnapshotSeed{
			{TokenType: "valuation", Data: map[string]any{"value": 1000, "currency": "USD"}},
			{TokenType: "OWNER", Data: map[string]any{"owner": "acme-holdings"}},
		},
	}, "issuer-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestEvolveAndHistory(t *testing.T) {
	router := newChainRouter(t)
	initialize(t, router)

	rec := do(t, router, http.MethodPost, "/chains/CT-0001/evolve", EvolveRequest{
		TokenType: "VALUATION",
		Data:      map[string]any{"value": 1200.5, "currency": "USD"},
		Reason:    "revaluation",
	}, "appraiser-7")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap models.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, models.ReasonRevaluation, snap.Reason)
	assert.Equal(t, id.ActorID("appraiser-7"), snap.Actor)
	assert.NotEmpty(t, snap.PreviousHash)

	t.Run("out of bounds revaluation is rejected", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/chains/CT-0001/evolve", EvolveRequest{
			TokenType: "VALUATION",
			Data:      map[string]any{"value": 5000},
		}, "appraiser-7")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("anonymous evolution is forbidden", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/chains/CT-0001/evolve", EvolveRequest{
			TokenType: "MEDIA",
			Data:      map[string]any{"uri": "ipfs://photo"},
		}, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = do(t, router, http.MethodGet, "/chains/CT-0001/history", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history models.History
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.True(t, history.IntegrityValid)
	assert.True(t, history.LinksValid)
	assert.Len(t, history.History, 2)
	require.NotNil(t, history.Current)
	assert.Equal(t, snap.ID, history.Current.ID)

	rec = do(t, router, http.MethodGet, "/chains/CT-0001/snapshot?type=valuation", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest models.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&latest))
	assert.Equal(t, snap.ID, latest.ID)

	rec = do(t, router, http.MethodGet, "/chains/CT-0001/snapshot?type=VALUATION&at=2001-01-01T00:00:00Z", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	past := testutil.WithRequestTime(testutil.NewJSONRequest(t, http.MethodGet, "/chains/CT-0001/snapshot?type=valuation", nil),
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	testutil.AssertError(t, testutil.DoRequest(router, past), http.StatusNotFound, dErrors.CodeNotFound)

	rec = do(t, router, http.MethodGet, "/chains/CT-0001/integrity", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var integrity IntegrityResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&integrity))
	assert.True(t, integrity.IntegrityValid)
	assert.True(t, integrity.LinksValid)
}

func TestMandatoryModeGatesRealWorldAssets(t *testing.T) {
	router := newChainRouter(t)
	initialize(t, router)

	rec := do(t, router, http.MethodPut, "/admin/chains/CT-0001/mode", ModeRequest{Mode: "mandatory"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/chains/CT-0001/evolve", EvolveRequest{
		TokenType: "COMPLIANCE",
		Data:      map[string]any{"jurisdiction": "DE", "assetType": "REAL_ESTATE"},
	}, "issuer-1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPost, "/chains/CT-0001/evolve", EvolveRequest{
		TokenType: "COMPLIANCE",
		Data:      map[string]any{"jurisdiction": "DE", "assetType": "REAL_ESTATE"},
		ChangeID:  "not-a-uuid",
	}, "issuer-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChainValidation(t *testing.T) {
	router := newChainRouter(t)

	rec := do(t, router, http.MethodPost, "/chains", InitializeRequest{PrimaryID: "PT-1", CompositeID: "CT-1",
		Snapshots: []SnapshotSeed{{TokenType: "SHOES", Data: map[string]any{}}}}, "issuer-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/chains/CT-404", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	initialize(t, router)
	rec = do(t, router, http.MethodPost, "/chains", InitializeRequest{PrimaryID: "PT-0001", CompositeID: "CT-0001"}, "issuer-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPut, "/admin/chains/CT-0001/mode", ModeRequest{Mode: "SOMETIMES"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
