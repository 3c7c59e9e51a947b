package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:9898", "http://localhost:9898"},
		{"with https prefix", "https://localhost:9898", "https://localhost:9898"},
		{"without prefix", "localhost:9898", "http://localhost:9898"},
		{"trailing slash", "http://localhost:9898/", "http://localhost:9898"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.server, time.Second)
			if client.BaseURL() != tt.wantPrefix {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), tt.wantPrefix)
			}
		})
	}
}

func TestHTTPClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "pageserver-cli/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/v1/status":
			w.Write([]byte(`{"code":"OK","message":"Success","data":{"kind":"inmemory"}}`))
		case "/ready":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":"PS-REG-5000","message":"repository not initialized"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second)
	ctx := context.Background()

	var status struct {
		Kind string `json:"kind"`
	}
	if err := client.GetJSON(ctx, "/v1/status", &status); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if status.Kind != "inmemory" {
		t.Errorf("kind = %q, want inmemory", status.Kind)
	}

	err := client.GetJSON(ctx, "/ready", nil)
	if err == nil || !strings.Contains(err.Error(), "PS-REG-5000") {
		t.Errorf("GetJSON(/ready) error = %v, want server error", err)
	}

	err = client.GetJSON(ctx, "/other", nil)
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("GetJSON(/other) error = %v, want status error", err)
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if err := NewHTTPClient(url, time.Second).GetJSON(context.Background(), "/health", nil); err == nil {
		t.Error("GetJSON() against closed server returned nil")
	}
}
