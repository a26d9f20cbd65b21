package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func domains(subs []Subdomain) map[string]bool {
	out := make(map[string]bool, len(subs))
	for _, s := range subs {
		out[s.Domain] = true
	}
	return out
}

func TestEnumerate_DeduplicatesOverlappingSources(t *testing.T) {
	sources := []SubdomainSource{
		&mockSource{name: "a", hosts: []string{"www.example.com", "api.example.com"}},
		&mockSource{name: "b", hosts: []string{"WWW.example.com", "api.example.com."}},
		&mockSource{name: "c", hosts: []string{"www.example.com", "example.com"}},
	}

	subs := Enumerate(context.Background(), "example.com", sources, 2, zerolog.Nop())

	if len(subs) != 3 {
		t.Fatalf("got %d subdomains, want 3: %+v", len(subs), subs)
	}
	got := domains(subs)
	for _, want := range []string{"example.com", "www.example.com", "api.example.com"} {
		if !got[want] {
			t.Errorf("missing %s", want)
		}
	}
}

func TestEnumerate_AlwaysIncludesSeed(t *testing.T) {
	sources := []SubdomainSource{
		&mockSource{name: "empty"},
		&mockSource{name: "broken", err: errors.New("unexpected end of JSON input")},
	}

	subs := Enumerate(context.Background(), "example.com", sources, 5, zerolog.Nop())

	if len(subs) != 1 || subs[0].Domain != "example.com" {
		t.Fatalf("got %+v, want only example.com", subs)
	}
}

func TestEnumerate_SubstringFilter(t *testing.T) {
	sources := []SubdomainSource{
		&mockSource{name: "a", hosts: []string{"a.example.com", "evil.org"}},
	}

	subs := Enumerate(context.Background(), "example.com", sources, 1, zerolog.Nop())

	got := domains(subs)
	if len(got) != 2 || !got["a.example.com"] || !got["example.com"] {
		t.Errorf("got %v, want {a.example.com, example.com}", got)
	}
}

func TestEnumerate_FailingSourceDoesNotAbort(t *testing.T) {
	sources := []SubdomainSource{
		&mockSource{name: "broken", err: errors.New("status 503")},
		&mockSource{name: "ok", hosts: []string{"mail.example.com"}},
	}

	subs := Enumerate(context.Background(), "example.com", sources, 2, zerolog.Nop())

	if !domains(subs)["mail.example.com"] {
		t.Errorf("result from healthy source missing: %+v", subs)
	}
}

type countingSource struct {
	active *atomic.Int32
	peak   *atomic.Int32
}

func (c countingSource) Name() string        { return "counting" }
func (c countingSource) Description() string { return "counts concurrent calls" }

func (c countingSource) Enumerate(ctx context.Context, domain string) ([]string, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return nil, nil
}

func TestEnumerate_BoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	var sources []SubdomainSource
	for i := 0; i < 12; i++ {
		sources = append(sources, countingSource{active: &active, peak: &peak})
	}

	Enumerate(context.Background(), "example.com", sources, 3, zerolog.Nop())

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if peak.Load() == 0 {
		t.Error("no source ran")
	}
}

func TestEnumerate_SortedOutput(t *testing.T) {
	sources := []SubdomainSource{
		&mockSource{name: "a", hosts: []string{"z.example.com", "b.example.com", "m.example.com"}},
	}

	subs := Enumerate(context.Background(), "example.com", sources, 1, zerolog.Nop())

	for i := 1; i < len(subs); i++ {
		if subs[i].Domain < subs[i-1].Domain {
			t.Fatalf("output not sorted: %+v", subs)
		}
	}
}

func TestResolveAll_DropsUnresolvable(t *testing.T) {
	resolver := &mockResolver{addrs: map[string][]string{
		"www.example.com": {"93.184.216.34"},
	}}
	subs := []Subdomain{{Domain: "ghost.example.com"}, {Domain: "www.example.com"}}

	resolved := ResolveAll(context.Background(), subs, resolver, 10, time.Second, zerolog.Nop())

	if len(resolved) != 1 || resolved[0].Domain != "www.example.com" {
		t.Fatalf("resolved = %+v, want only www.example.com", resolved)
	}
	if resolved[0].ResolvedIP != "93.184.216.34" {
		t.Errorf("resolved ip = %q", resolved[0].ResolvedIP)
	}
	if resolver.calls != 2 {
		t.Errorf("resolver calls = %d, want 2", resolver.calls)
	}
}

type slowResolver struct{}

func (slowResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveAll_LookupTimeout(t *testing.T) {
	subs := []Subdomain{{Domain: "a.example.com"}, {Domain: "b.example.com"}}

	start := time.Now()
	resolved := ResolveAll(context.Background(), subs, slowResolver{}, 1, 30*time.Millisecond, zerolog.Nop())

	if len(resolved) != 0 {
		t.Errorf("expected no results, got %+v", resolved)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lookups not bounded by timeout: %s", elapsed)
	}
}

// ctxResolver answers every host unless the lookup context is already done.
type ctxResolver struct{}

func (ctxResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{"192.0.2.1"}, nil
}

func TestResolveAll_ZeroTimeoutKeepsHosts(t *testing.T) {
	subs := []Subdomain{{Domain: "a.example.com"}, {Domain: "b.example.com"}}

	resolved := ResolveAll(context.Background(), subs, ctxResolver{}, 2, 0, zerolog.Nop())

	if len(resolved) != 2 {
		t.Errorf("resolved = %+v, want both hosts", resolved)
	}
}
