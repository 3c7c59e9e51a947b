package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/server/pageservice"
)

type fakeReadiness struct{ ready bool }

func (f *fakeReadiness) Initialized() bool { return f.ready }

type fakeStatus struct {
	status pageservice.Status
	err    error
}

func (f *fakeStatus) Status(context.Context) (pageservice.Status, error) { return f.status, f.err }

func testHandler(ready bool) *Handler {
	status := &fakeStatus{status: pageservice.Status{Kind: "inmemory", ID: "01J0TEST", LastValidLSN: "0/10"}}
	return New(&fakeReadiness{ready: ready}, status, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHandler_Health(t *testing.T) {
	for _, ready := range []bool{false, true} {
		t.Run(fmt.Sprintf("ready=%v", ready), func(t *testing.T) {
			rec := serve(testHandler(ready), "/health")
			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}

			resp := decode(t, rec)
			if resp.Code != "OK" {
				t.Errorf("expected code 'OK', got '%s'", resp.Code)
			}
			data, ok := resp.Data.(map[string]any)
			if !ok {
				t.Fatal("expected data to be a map")
			}
			if data["status"] != "healthy" {
				t.Errorf("expected status 'healthy', got '%v'", data["status"])
			}
		})
	}
}

func TestHandler_Ready(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		rec := serve(testHandler(false), "/ready")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
		if got := rec.Header().Get("X-Error-Code"); got != "PS-REG-5000" {
			t.Errorf("expected X-Error-Code PS-REG-5000, got %q", got)
		}
	})

	t.Run("initialized", func(t *testing.T) {
		rec := serve(testHandler(true), "/ready")
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})
}

func TestHandler_Status(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		rec := serve(testHandler(false), "/v1/status")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
	})

	t.Run("initialized", func(t *testing.T) {
		rec := serve(testHandler(true), "/v1/status")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		data, ok := decode(t, rec).Data.(map[string]any)
		if !ok {
			t.Fatal("expected data to be a map")
		}
		if data["kind"] != "inmemory" || data["id"] != "01J0TEST" || data["last_valid_lsn"] != "0/10" {
			t.Errorf("unexpected status data: %v", data)
		}
	})

	t.Run("repository closed", func(t *testing.T) {
		h := New(&fakeReadiness{ready: true}, &fakeStatus{err: domain.ErrRepositoryClosed}, nil)
		rec := serve(h, "/v1/status")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
		if got := rec.Header().Get("X-Error-Code"); got != "PS-REPO-5030" {
			t.Errorf("expected X-Error-Code PS-REPO-5030, got %q", got)
		}
	})
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest("POST", "/health", nil)
	rec := httptest.NewRecorder()
	testHandler(true).ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	testHandler(true).ServeHTTP(rec, req)

	if resp := decode(t, rec); resp.RequestID != "req-abc" {
		t.Errorf("expected request_id 'req-abc', got '%s'", resp.RequestID)
	}
}

func TestHandleServiceError(t *testing.T) {
	h := testHandler(true)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"relation not found", domain.ErrRelationNotFound.WithDetails("rel"), http.StatusNotFound, "PS-REPO-4041"},
		{"lsn timeout", domain.ErrLSNTimeout, http.StatusGatewayTimeout, "PS-REPO-4080"},
		{"invalid image", domain.ErrInvalidPageImage, http.StatusBadRequest, "PS-REPO-4001"},
		{"invalid argument", domain.ErrInvalidArgument, http.StatusBadRequest, "PS-ARG-1001"},
		{"closed", fmt.Errorf("read: %w", domain.ErrRepositoryClosed), http.StatusServiceUnavailable, "PS-REPO-5030"},
		{"corrupt", domain.ErrCorruptVersion, http.StatusInternalServerError, "PS-REPO-5001"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "PS-SYS-5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.handleServiceError(rec, httptest.NewRequest("GET", "/", nil), tt.err)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if resp := decode(t, rec); resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
		})
	}
}

func TestResponse_Envelope(t *testing.T) {
	t.Run("success response has correct structure", func(t *testing.T) {
		resp := NewResponse("req-123", map[string]string{"key": "value"})

		if resp.Code != "OK" {
			t.Errorf("expected code 'OK', got '%s'", resp.Code)
		}
		if resp.Message != "Success" {
			t.Errorf("expected message 'Success', got '%s'", resp.Message)
		}
		if resp.RequestID != "req-123" {
			t.Errorf("expected request_id 'req-123', got '%s'", resp.RequestID)
		}
		if resp.Timestamp == 0 {
			t.Error("expected timestamp to be set")
		}
	})

	t.Run("error response has correct structure", func(t *testing.T) {
		resp := NewErrorResponse("req-456", "PS-REG-5000", "not initialized", nil)

		if resp.Code != "PS-REG-5000" {
			t.Errorf("expected code 'PS-REG-5000', got '%s'", resp.Code)
		}
		if resp.Data != nil {
			t.Error("expected data to be nil for error response")
		}
	})
}
