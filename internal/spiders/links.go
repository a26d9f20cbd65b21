// Package spiders holds the crawler.Spider implementations shipped with
// surveyor.
package spiders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/vulnverified/surveyor/internal/httpclient"
)

// Fetcher is the HTTP capability the spiders need.
type Fetcher interface {
	Get(ctx context.Context, url string) (*httpclient.Response, error)
	GetJSON(ctx context.Context, url string, v any) error
}

// Page is one crawled page.
type Page struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Title  string `json:"title,omitempty"`
	Links  int    `json:"links"`
}

// Links crawls every page reachable from a start URL without leaving its
// host, emitting one Page per URL as a JSON line.
type Links struct {
	start  *url.URL
	client Fetcher
	log    zerolog.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// NewLinks validates start and returns a spider writing pages to out.
func NewLinks(start string, client Fetcher, out io.Writer, log zerolog.Logger) (*Links, error) {
	u, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("start url %q: scheme must be http or https", start)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("start url %q: missing host", start)
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return &Links{start: u, client: client, log: log, enc: json.NewEncoder(out)}, nil
}

func (l *Links) Name() string { return "links" }

func (l *Links) StartURLs() []string {
	return []string{l.start.String()}
}

// Scrape fetches rawURL and returns it as a Page along with the same-host
// links found in its HTML.
func (l *Links) Scrape(ctx context.Context, rawURL string) ([]Page, []string, error) {
	resp, err := l.client.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}

	page := Page{URL: rawURL, Status: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !isHTML(resp) {
		return []Page{page}, nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return []Page{page}, nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	base, err := url.Parse(rawURL)
	if err != nil {
		return []Page{page}, nil, nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := l.normalize(base, href)
		if !ok || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	page.Links = len(links)

	return []Page{page}, links, nil
}

// normalize resolves href against base and keeps it only if it stays on the
// start host over http(s).
func (l *Links) normalize(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(u.Host, l.start.Host) {
		return "", false
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}

// Process writes page as one JSON line.
func (l *Links) Process(ctx context.Context, page Page) error {
	l.log.Debug().Str("url", page.URL).Int("status", page.Status).Msg("page")

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(page)
}

func isHTML(resp *httpclient.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
