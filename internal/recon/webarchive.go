package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/vulnverified/surveyor/internal/httpclient"
)

const (
	webArchiveEndpoint   = "https://web.archive.org/cdx/search/cdx?url=%s&output=json&matchType=domain&fl=original&collapse=urlkey"
	webArchiveRetryDelay = 3 * time.Second
)

// WebArchive extracts hostnames from URLs the Wayback Machine has captured.
type WebArchive struct {
	client     *httpclient.Client
	endpoint   string
	retryDelay time.Duration
}

func NewWebArchive(client *httpclient.Client) *WebArchive {
	return &WebArchive{client: client, endpoint: webArchiveEndpoint, retryDelay: webArchiveRetryDelay}
}

func (w *WebArchive) Name() string { return "subdomains/webarchive" }

func (w *WebArchive) Description() string {
	return "Use web.archive.org to find subdomains"
}

func (w *WebArchive) Enumerate(ctx context.Context, domain string) ([]string, error) {
	resp, err := fetch(ctx, w.client, fmt.Sprintf(w.endpoint, domain), w.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("web.archive.org fetch for %s: %w", domain, err)
	}
	return parseWebArchive(resp.Body, domain)
}

// parseWebArchive reads the CDX JSON output: an array of rows whose first
// row is the "original" column header.
func parseWebArchive(body []byte, domain string) ([]string, error) {
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("web.archive.org JSON parse for %s: %w", domain, err)
	}

	set := newHostSet(domain)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		u, err := url.Parse(row[0])
		if err != nil {
			continue
		}
		set.add(u.Hostname())
	}
	return set.hosts, nil
}
