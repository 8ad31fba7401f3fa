package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "rwaledger/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

type createRequest struct {
	Name string `json:"name" validate:"required"`
	Tier string `json:"tier" validate:"required,oneof=T1 T2 T3 T4"`
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) error {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var req createRequest
		return DecodeJSON(r, &req)
	}

	t.Run("valid", func(t *testing.T) {
		if err := decode(`{"name":"ACME","tier":"T1"}`); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("empty body", func(t *testing.T) {
		if err := decode(``); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request, got %v", err)
		}
	})
	t.Run("unknown field", func(t *testing.T) {
		if err := decode(`{"name":"ACME","tier":"T1","extra":1}`); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request, got %v", err)
		}
	})
	t.Run("validation", func(t *testing.T) {
		err := decode(`{"tier":"T9"}`)
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			t.Fatalf("expected validation_error, got %v", err)
		}
		if !strings.Contains(err.Error(), "Name is required") || !strings.Contains(err.Error(), "Tier must be one of") {
			t.Fatalf("unexpected message %q", err.Error())
		}
	})
}

func TestDecodeJSONNumbers(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":{"value":1000.50}}`))
	var req struct {
		Data map[string]any `json:"data"`
	}
	if err := DecodeJSONNumbers(r, &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := req.Data["value"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", req.Data["value"])
	}
	if n.String() != "1000.50" {
		t.Fatalf("expected literal 1000.50, got %s", n)
	}
}
