// Package recon implements the subdomain sources surveyor enumerates with.
package recon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vulnverified/surveyor/internal/engine"
	"github.com/vulnverified/surveyor/internal/httpclient"
)

// DNS is what the brute-force and zone transfer sources need from a resolver.
type DNS interface {
	engine.Resolver
	LookupNS(ctx context.Context, domain string) ([]string, error)
}

// Options selects and configures the sources returned by Sources.
type Options struct {
	Client   *httpclient.Client
	Resolver DNS
	// Brute adds the wordlist brute-force source.
	Brute            bool
	BruteConcurrency int
	// Wordlist overrides the embedded brute-force wordlist.
	Wordlist []string
	// AXFR adds the zone transfer source.
	AXFR bool
}

// Sources returns the passive sources plus the optional active ones.
func Sources(opts Options) []engine.SubdomainSource {
	sources := []engine.SubdomainSource{
		NewCrtsh(opts.Client),
		NewWebArchive(opts.Client),
		NewHackerTarget(opts.Client),
		NewOTX(opts.Client),
	}
	if opts.Brute && opts.Resolver != nil {
		sources = append(sources, NewBrute(opts.Resolver, opts.BruteConcurrency, opts.Wordlist))
	}
	if opts.AXFR && opts.Resolver != nil {
		sources = append(sources, NewZoneTransfer(opts.Resolver))
	}
	return sources
}

// errRateLimited marks answers that must not be retried.
var errRateLimited = errors.New("rate limited")

// fetch GETs url and retries once after retryDelay, unless the upstream
// rate limited us or ctx is done.
func fetch(ctx context.Context, client *httpclient.Client, url string, retryDelay time.Duration) (*httpclient.Response, error) {
	resp, err := fetchOnce(ctx, client, url)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, errRateLimited) || ctx.Err() != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	return fetchOnce(ctx, client, url)
}

func fetchOnce(ctx context.Context, client *httpclient.Client, url string) (*httpclient.Response, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w (429)", errRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// hostSet collects lowercase hostnames under domain in first-seen order.
type hostSet struct {
	domain string
	seen   map[string]bool
	hosts  []string
}

func newHostSet(domain string) *hostSet {
	return &hostSet{domain: strings.ToLower(domain), seen: make(map[string]bool)}
}

// add keeps name if it is domain or one of its subdomains. A leading
// wildcard label is stripped.
func (s *hostSet) add(name string) {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	name = strings.TrimPrefix(name, "*.")
	if name == "" {
		return
	}
	if !strings.HasSuffix(name, "."+s.domain) && name != s.domain {
		return
	}
	if !s.seen[name] {
		s.seen[name] = true
		s.hosts = append(s.hosts, name)
	}
}
