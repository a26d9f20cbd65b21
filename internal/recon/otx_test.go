package recon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseOTX(t *testing.T) {
	body := []byte(`{
		"passive_dns": [
			{"hostname": "www.example.com"},
			{"hostname": "API.example.com"},
			{"hostname": "mail.example.com"},
			{"hostname": "other.notexample.com"},
			{"hostname": "www.example.com"},
			{"hostname": ""}
		]
	}`)

	hosts, err := parseOTX(body, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]bool{
		"www.example.com":  true,
		"api.example.com":  true,
		"mail.example.com": true,
	}
	if len(hosts) != len(expected) {
		t.Errorf("got %d hosts, want %d: %v", len(hosts), len(expected), hosts)
	}
	for _, h := range hosts {
		if !expected[h] {
			t.Errorf("unexpected host: %s", h)
		}
	}
}

func TestParseOTX_Empty(t *testing.T) {
	hosts, err := parseOTX([]byte(`{"passive_dns": []}`), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 0 {
		t.Errorf("expected 0 hosts, got %d", len(hosts))
	}
}

func TestParseOTX_InvalidJSON(t *testing.T) {
	if _, err := parseOTX([]byte(`not json`), "example.com"); err == nil {
		t.Fatal("expected error on invalid JSON")
	}
}

func TestOTX_Enumerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"passive_dns": [{"hostname": "www.example.com"}, {"hostname": "api.example.com"}]}`))
	}))
	defer srv.Close()

	src := NewOTX(testClient(t))
	src.endpoint = srv.URL + "/api/v1/indicators/domain/%s/passive_dns"

	hosts, err := src.Enumerate(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Errorf("got %d hosts, want 2", len(hosts))
	}
}

func TestOTX_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewOTX(testClient(t))
	src.endpoint = srv.URL + "/%s"
	src.retryDelay = time.Minute

	start := time.Now()
	if _, err := src.Enumerate(context.Background(), "example.com"); err == nil {
		t.Fatal("expected error on 429")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("429 answer was retried")
	}
}
