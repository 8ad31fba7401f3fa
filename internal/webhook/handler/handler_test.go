package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/webhook/models"
	"rwaledger/internal/webhook/service"
	"rwaledger/internal/webhook/store"
)

func newWebhookRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(store.NewInMemory())
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterAdmin(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestSubscriptionLifecycle(t *testing.T) {
	router := newWebhookRouter(t)

	rec := do(t, router, http.MethodPost, "/admin/webhooks", RegisterRequest{
		URL:    "https://hooks.example.com/rwa",
		Secret: "0123456789abcdef0123",
		Events: []string{"token_evolved", "CONSENSUS_REACHED"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "0123456789abcdef0123")
	var sub models.Subscription
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sub))
	assert.Equal(t, []string{"TOKEN_EVOLVED", "CONSENSUS_REACHED"}, sub.Events)

	rec = do(t, router, http.MethodGet, "/admin/webhooks/"+sub.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/admin/webhooks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)

	rec = do(t, router, http.MethodDelete, "/admin/webhooks/"+sub.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, "/admin/webhooks/"+sub.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newWebhookRouter(t)

	rec := do(t, router, http.MethodPost, "/admin/webhooks", RegisterRequest{URL: "ftp://files.example.com", Secret: "0123456789abcdef"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/admin/webhooks", RegisterRequest{URL: "https://hooks.example.com", Secret: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/admin/webhooks/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
