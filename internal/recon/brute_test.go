package recon

import (
	"context"
	"sort"
	"testing"
)

func TestBrute_KeepsResolvingNames(t *testing.T) {
	dns := &stubDNS{addrs: map[string][]string{
		"www.example.com":  {"192.0.2.1"},
		"mail.example.com": {"192.0.2.2"},
	}}
	b := &Brute{resolver: dns, words: []string{"www", "mail", "ftp", "vpn"}, concurrency: 2}

	hosts, err := b.Enumerate(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(hosts)
	if len(hosts) != 2 || hosts[0] != "mail.example.com" || hosts[1] != "www.example.com" {
		t.Errorf("hosts = %v", hosts)
	}
}

func TestBrute_EmptyWordlist(t *testing.T) {
	b := &Brute{resolver: &stubDNS{}, concurrency: 1}
	if _, err := b.Enumerate(context.Background(), "example.com"); err == nil {
		t.Error("expected error for empty wordlist")
	}
}

func TestBrute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dns := &stubDNS{addrs: map[string][]string{"www.example.com": {"192.0.2.1"}}}
	b := &Brute{resolver: dns, words: []string{"www"}, concurrency: 1}

	hosts, err := b.Enumerate(ctx, "example.com")
	if err == nil || len(hosts) != 0 {
		t.Errorf("hosts = %v, err = %v; want nothing and a context error", hosts, err)
	}
}

func TestNewBrute_UsesEmbeddedWordlist(t *testing.T) {
	b := NewBrute(&stubDNS{}, 0, nil)
	if len(b.words) == 0 {
		t.Error("embedded wordlist not loaded")
	}

	custom := NewBrute(&stubDNS{}, 4, []string{"only"})
	if len(custom.words) != 1 || custom.concurrency != 4 {
		t.Errorf("custom brute = %+v", custom)
	}
	if b.concurrency != defaultBruteConcurrency {
		t.Errorf("concurrency = %d, want %d", b.concurrency, defaultBruteConcurrency)
	}
}
