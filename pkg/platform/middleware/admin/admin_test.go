package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"match", "s3cret", "s3cret", http.StatusNoContent},
		{"mismatch", "s3cret", "guess", http.StatusForbidden},
		{"missing", "s3cret", "", http.StatusForbidden},
		{"unconfigured rejects all", "", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.sent != "" {
				r.Header.Set(HeaderAdminToken, tc.sent)
			}
			w := httptest.NewRecorder()
			RequireAdminToken(tc.expected, logger)(ok).ServeHTTP(w, r)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
