package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vulnverified/surveyor/internal/httpclient"
)

const (
	otxEndpoint   = "https://otx.alienvault.com/api/v1/indicators/domain/%s/passive_dns"
	otxRetryDelay = 3 * time.Second
)

type otxResponse struct {
	PassiveDNS []otxEntry `json:"passive_dns"`
}

type otxEntry struct {
	Hostname string `json:"hostname"`
}

// OTX queries AlienVault OTX passive DNS.
type OTX struct {
	client     *httpclient.Client
	endpoint   string
	retryDelay time.Duration
}

func NewOTX(client *httpclient.Client) *OTX {
	return &OTX{client: client, endpoint: otxEndpoint, retryDelay: otxRetryDelay}
}

func (o *OTX) Name() string { return "subdomains/otx" }

func (o *OTX) Description() string {
	return "Use AlienVault OTX passive DNS to find subdomains"
}

func (o *OTX) Enumerate(ctx context.Context, domain string) ([]string, error) {
	resp, err := fetch(ctx, o.client, fmt.Sprintf(o.endpoint, domain), o.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("otx fetch for %s: %w", domain, err)
	}
	return parseOTX(resp.Body, domain)
}

func parseOTX(body []byte, domain string) ([]string, error) {
	var resp otxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("otx JSON parse: %w", err)
	}

	set := newHostSet(domain)
	for _, entry := range resp.PassiveDNS {
		set.add(entry.Hostname)
	}
	return set.hosts, nil
}
