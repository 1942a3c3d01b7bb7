package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServerEndpoints(t *testing.T) {
	s := NewServer(":0")
	srv := httptest.NewServer(s.server.Handler)
	defer srv.Close()

	tests := []struct {
		path string
		body string
	}{
		{"/healthz", "ok"},
		{"/readyz", "ready"},
	}

	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.path, resp.StatusCode)
		}
		if string(data) != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.body, string(data))
		}
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics: expected 200, got %d", resp.StatusCode)
	}
}
