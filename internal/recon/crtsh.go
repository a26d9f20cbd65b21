package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vulnverified/surveyor/internal/httpclient"
)

const (
	crtshEndpoint   = "https://crt.sh/?q=%%25.%s&output=json"
	crtshRetryDelay = 3 * time.Second
)

type crtshEntry struct {
	NameValue string `json:"name_value"`
}

// Crtsh queries crt.sh Certificate Transparency logs.
type Crtsh struct {
	client     *httpclient.Client
	endpoint   string
	retryDelay time.Duration
}

func NewCrtsh(client *httpclient.Client) *Crtsh {
	return &Crtsh{client: client, endpoint: crtshEndpoint, retryDelay: crtshRetryDelay}
}

func (c *Crtsh) Name() string { return "subdomains/crtsh" }

func (c *Crtsh) Description() string {
	return "Use crt.sh Certificate Transparency logs to find subdomains"
}

// Enumerate returns the certificate names under domain, lowercase and with
// wildcards stripped.
func (c *Crtsh) Enumerate(ctx context.Context, domain string) ([]string, error) {
	resp, err := fetch(ctx, c.client, fmt.Sprintf(c.endpoint, domain), c.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("crt.sh fetch for %s: %w", domain, err)
	}
	return parseCrtsh(resp.Body, domain)
}

func parseCrtsh(body []byte, domain string) ([]string, error) {
	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("crt.sh JSON parse for %s: %w", domain, err)
	}

	set := newHostSet(domain)
	for _, entry := range entries {
		// name_value can contain multiple names separated by newlines.
		for _, name := range strings.Split(entry.NameValue, "\n") {
			set.add(name)
		}
	}
	return set.hosts, nil
}
