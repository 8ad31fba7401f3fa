package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "rwaledger/internal/jwt_token"
	"rwaledger/internal/platform/metrics"
	verifierhandler "rwaledger/internal/verifier/handler"
	verifierservice "rwaledger/internal/verifier/service"
	verifierstore "rwaledger/internal/verifier/store"
	"rwaledger/pkg/platform/middleware/admin"
)

const adminToken = "operator-secret"

type routerFixture struct {
	router http.Handler
	jwt    *jwttoken.JWTService
}

func newRouterFixture(t *testing.T, health map[string]HealthCheck) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService("test-signing-key", "rwaledger", "rwaledger-api")
	verifiers := verifierhandler.New(verifierservice.New(verifierstore.NewInMemory()), logger)
	return &routerFixture{
		jwt: jwt,
		router: NewRouter(Config{
			Logger:     logger,
			Metrics:    metrics.New(),
			Validator:  jwttoken.NewJWTServiceAdapter(jwt),
			AdminToken: adminToken,
			API:        []Routes{verifiers},
			Admin:      []AdminRoutes{verifiers},
			Health:     health,
		}),
	}
}

func (f *routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) bearer(t *testing.T, actor string) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(actor, "issuer", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/verifiers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/verifiers", nil)
	req.Header.Set("Authorization", f.bearer(t, "issuer-1"))
	rec = f.serve(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestContentTypeIsEnforced(t *testing.T) {
	f := newRouterFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/verifiers", strings.NewReader("name=x"))
	req.Header.Set("Authorization", f.bearer(t, "issuer-1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.serve(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestOperatorRoutesUseAdminToken(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/verifiers/VER-T1-x-1/approve", nil)
	req.Header.Set("Authorization", f.bearer(t, "issuer-1"))
	rec := f.serve(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/verifiers/VER-T1-x-1/approve", nil)
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	rec = f.serve(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newRouterFixture(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rec := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)

		rec = f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("degraded", func(t *testing.T) {
		f := newRouterFixture(t, map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rec := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "degraded")
	})
}
