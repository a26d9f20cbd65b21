package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Enumerate runs every source concurrently, at most concurrency at a time,
// and merges their results into a deduplicated candidate set. A failing
// source is logged and contributes nothing. Hostnames that do not contain the
// target are dropped, and the target itself is always part of the result.
func Enumerate(ctx context.Context, target string, sources []SubdomainSource, concurrency int, log zerolog.Logger) []Subdomain {
	target = normalizeHost(target)

	p := pool.NewWithResults[[]string]().WithMaxGoroutines(max(concurrency, 1))
	for _, src := range sources {
		p.Go(func() []string {
			if ctx.Err() != nil {
				return nil
			}
			hosts, err := src.Enumerate(ctx, target)
			if err != nil {
				log.Warn().Err(err).Str("source", src.Name()).Str("target", target).Msg("subdomain source failed")
				return nil
			}
			log.Debug().Str("source", src.Name()).Int("count", len(hosts)).Msg("subdomain source done")
			return hosts
		})
	}

	seen := map[string]bool{target: true}
	for _, hosts := range p.Wait() {
		for _, h := range hosts {
			h = normalizeHost(h)
			if h == "" || !strings.Contains(h, target) {
				continue
			}
			seen[h] = true
		}
	}

	subdomains := make([]Subdomain, 0, len(seen))
	for host := range seen {
		subdomains = append(subdomains, Subdomain{Domain: host, OpenPorts: []Port{}})
	}
	sort.Slice(subdomains, func(i, j int) bool {
		return subdomains[i].Domain < subdomains[j].Domain
	})
	return subdomains
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
