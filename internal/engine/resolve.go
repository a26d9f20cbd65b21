package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// ResolveAll keeps the subdomains that resolve to at least one address and
// records the first address on each survivor. Unresolvable names are dropped
// without error: most certificate-transparency names have no live record.
// A timeout of zero leaves lookups bounded only by ctx.
func ResolveAll(ctx context.Context, subdomains []Subdomain, resolver Resolver, concurrency int, timeout time.Duration, log zerolog.Logger) []Subdomain {
	p := pool.NewWithResults[*Subdomain]().WithMaxGoroutines(max(concurrency, 1))
	for _, sub := range subdomains {
		p.Go(func() *Subdomain {
			if ctx.Err() != nil {
				return nil
			}
			lookupCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				lookupCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			addrs, err := resolver.Resolve(lookupCtx, sub.Domain)
			if err != nil || len(addrs) == 0 {
				log.Debug().Err(err).Str("host", sub.Domain).Msg("dropping unresolved host")
				return nil
			}
			sub.ResolvedIP = addrs[0]
			return &sub
		})
	}

	var resolved []Subdomain
	for _, sub := range p.Wait() {
		if sub != nil {
			resolved = append(resolved, *sub)
		}
	}
	return resolved
}
