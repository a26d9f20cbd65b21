package recon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vulnverified/surveyor/internal/httpclient"
)

const (
	hackertargetEndpoint   = "https://api.hackertarget.com/hostsearch/?q=%s"
	hackertargetRetryDelay = 2 * time.Second
	hackertargetRateMsg    = "API count exceeded"
)

// HackerTarget queries the HackerTarget host search API.
type HackerTarget struct {
	client     *httpclient.Client
	endpoint   string
	retryDelay time.Duration
}

func NewHackerTarget(client *httpclient.Client) *HackerTarget {
	return &HackerTarget{client: client, endpoint: hackertargetEndpoint, retryDelay: hackertargetRetryDelay}
}

func (h *HackerTarget) Name() string { return "subdomains/hackertarget" }

func (h *HackerTarget) Description() string {
	return "Use the HackerTarget host search API to find subdomains"
}

func (h *HackerTarget) Enumerate(ctx context.Context, domain string) ([]string, error) {
	resp, err := fetch(ctx, h.client, fmt.Sprintf(h.endpoint, domain), h.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("hackertarget fetch for %s: %w", domain, err)
	}

	body := string(resp.Body)
	// The quota error comes back as a 200 with a plain-text message.
	if strings.Contains(body, hackertargetRateMsg) {
		return nil, fmt.Errorf("hackertarget: %w: %s", errRateLimited, hackertargetRateMsg)
	}
	return parseHackerTarget(body, domain), nil
}

// parseHackerTarget parses the plain-text "host,ip" response format.
func parseHackerTarget(body, domain string) []string {
	set := newHostSet(domain)
	for _, line := range strings.Split(body, "\n") {
		host, _, _ := strings.Cut(strings.TrimSpace(line), ",")
		set.add(host)
	}
	return set.hosts
}
