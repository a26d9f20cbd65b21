package recon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseWebArchive(t *testing.T) {
	body := []byte(`[
		["original"],
		["http://www.example.com/index.html"],
		["https://shop.example.com:8443/cart?id=1"],
		["http://WWW.example.com/about"],
		["http://cdn.other.net/example.com.js"],
		["::not a url"]
	]`)

	hosts, err := parseWebArchive(body, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 || hosts[0] != "www.example.com" || hosts[1] != "shop.example.com" {
		t.Errorf("hosts = %v, want [www.example.com shop.example.com]", hosts)
	}
}

func TestParseWebArchive_Empty(t *testing.T) {
	hosts, err := parseWebArchive([]byte(`[]`), "example.com")
	if err != nil || len(hosts) != 0 {
		t.Errorf("hosts = %v, err = %v", hosts, err)
	}
}

func TestWebArchive_Enumerate(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		w.Write([]byte(`[["original"],["http://api.example.com/v1"]]`))
	}))
	defer srv.Close()

	src := NewWebArchive(testClient(t))
	src.endpoint = srv.URL + "/cdx?url=%s&output=json"

	hosts, err := src.Enumerate(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotURL != "example.com" {
		t.Errorf("url param = %q", gotURL)
	}
	if len(hosts) != 1 || hosts[0] != "api.example.com" {
		t.Errorf("hosts = %v", hosts)
	}
}
