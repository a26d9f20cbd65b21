package recon

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vulnverified/surveyor/internal/engine"
	"github.com/vulnverified/surveyor/internal/wordlist"
)

const defaultBruteConcurrency = 50

// Brute resolves wordlist candidates under the target and keeps the ones
// that answer.
type Brute struct {
	resolver    engine.Resolver
	words       []string
	concurrency int
}

// NewBrute tries words, or the embedded wordlist when words is empty.
func NewBrute(resolver engine.Resolver, concurrency int, words []string) *Brute {
	if concurrency <= 0 {
		concurrency = defaultBruteConcurrency
	}
	if len(words) == 0 {
		words = wordlist.Subdomains()
	}
	return &Brute{resolver: resolver, words: words, concurrency: concurrency}
}

func (b *Brute) Name() string { return "subdomains/brute" }

func (b *Brute) Description() string {
	return "Resolve common subdomain names from a wordlist"
}

func (b *Brute) Enumerate(ctx context.Context, domain string) ([]string, error) {
	if len(b.words) == 0 {
		return nil, fmt.Errorf("empty subdomain wordlist")
	}

	work := make(chan string, len(b.words))
	for _, w := range b.words {
		work <- strings.ToLower(w + "." + domain)
	}
	close(work)

	var (
		mu    sync.Mutex
		found []string
	)

	var wg sync.WaitGroup
	for i := 0; i < min(b.concurrency, len(b.words)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range work {
				if ctx.Err() != nil {
					return
				}

				addrs, err := b.resolver.Resolve(ctx, host)
				if err != nil || len(addrs) == 0 {
					continue
				}

				mu.Lock()
				found = append(found, host)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return found, ctx.Err()
}
