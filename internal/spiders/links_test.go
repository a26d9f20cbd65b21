package spiders

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vulnverified/surveyor/internal/crawler"
	"github.com/vulnverified/surveyor/internal/httpclient"
)

func testClient(t *testing.T) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Options{Timeout: 2 * time.Second, NoCache: true})
	if err != nil {
		t.Fatalf("httpclient.New: %v", err)
	}
	return c
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":  `<html><head><title> Home </title></head><body><a href="/a">A</a><a href="b#top">B</a><a href="https://elsewhere.example/">x</a><a href="mailto:me@example.com">m</a></body></html>`,
		"/a": `<html><head><title>A</title></head><body><a href="/">home</a><a href="/b">B</a></body></html>`,
		"/b": `<html><head><title>B</title></head><body><a href="/missing">gone</a></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewLinks_Validates(t *testing.T) {
	for _, bad := range []string{"ftp://example.com", "example.com", "http://", "://x"} {
		if _, err := NewLinks(bad, testClient(t), &bytes.Buffer{}, zerolog.Nop()); err == nil {
			t.Errorf("NewLinks(%q) succeeded, want error", bad)
		}
	}

	l, err := NewLinks("https://example.com#frag", testClient(t), &bytes.Buffer{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLinks: %v", err)
	}
	if got := l.StartURLs(); len(got) != 1 || got[0] != "https://example.com/" {
		t.Errorf("start urls = %v", got)
	}
}

func TestLinks_Scrape(t *testing.T) {
	srv := testSite(t)
	l, err := NewLinks(srv.URL, testClient(t), &bytes.Buffer{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLinks: %v", err)
	}

	pages, links, err := l.Scrape(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(pages) != 1 || pages[0].Title != "Home" || pages[0].Status != 200 {
		t.Errorf("pages = %+v", pages)
	}
	want := []string{srv.URL + "/a", srv.URL + "/b"}
	if len(links) != len(want) || links[0] != want[0] || links[1] != want[1] {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestLinks_ScrapeNotFound(t *testing.T) {
	srv := testSite(t)
	l, _ := NewLinks(srv.URL, testClient(t), &bytes.Buffer{}, zerolog.Nop())

	pages, links, err := l.Scrape(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(pages) != 1 || pages[0].Status != http.StatusNotFound || len(links) != 0 {
		t.Errorf("pages = %+v, links = %v", pages, links)
	}
}

func TestLinks_Normalize(t *testing.T) {
	l, _ := NewLinks("http://example.com/", testClient(t), &bytes.Buffer{}, zerolog.Nop())
	base, _ := url.Parse("http://example.com/docs/index.html")

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"page.html", "http://example.com/docs/page.html", true},
		{"../about#team", "http://example.com/about", true},
		{"//EXAMPLE.com", "http://EXAMPLE.com/", true},
		{"https://example.com/secure", "https://example.com/secure", true},
		{"http://other.com/", "", false},
		{"javascript:void(0)", "", false},
		{"#section", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := l.normalize(base, tt.href)
		if ok != tt.ok || got != tt.want {
			t.Errorf("normalize(%q) = %q, %v; want %q, %v", tt.href, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLinks_CrawlsWholeSite(t *testing.T) {
	srv := testSite(t)
	var out bytes.Buffer
	l, err := NewLinks(srv.URL, testClient(t), &out, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLinks: %v", err)
	}

	c := crawler.New[Page](crawler.Config{CrawlConcurrency: 2, ProcessConcurrency: 1}, l, zerolog.Nop())
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// /, /a, /b and /missing.
	if stats.Visited != 4 || stats.Items != 4 {
		t.Errorf("stats = %+v", stats)
	}

	seen := make(map[string]int)
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var p Page
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("bad JSON line %q: %v", scanner.Text(), err)
		}
		seen[p.URL] = p.Status
	}
	if len(seen) != 4 || seen[srv.URL+"/missing"] != http.StatusNotFound {
		t.Errorf("pages = %v", seen)
	}
}
