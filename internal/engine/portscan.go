package engine

import (
	"context"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PortProber performs TCP connect scans against a single subdomain.
type PortProber struct {
	Resolver    Resolver
	Ports       []uint16
	Concurrency int
	Timeout     time.Duration
	DNSTimeout  time.Duration
	Log         zerolog.Logger
}

// Probe returns sub with OpenPorts set to the candidate ports that accepted a
// connection within the timeout. A subdomain without any resolvable address
// is returned unchanged. Closed and filtered ports are silently skipped.
func (p *PortProber) Probe(ctx context.Context, sub Subdomain) Subdomain {
	ip := p.address(ctx, sub)
	if ip == "" {
		p.Log.Debug().Str("host", sub.Domain).Msg("no socket address, skipping port scan")
		return sub
	}

	workers := min(max(p.Concurrency, 1), len(p.Ports))
	input := make(chan uint16, workers)
	output := make(chan uint16, workers)

	go func() {
		defer close(input)
		for _, port := range p.Ports {
			select {
			case input <- port:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dialer := net.Dialer{Timeout: p.Timeout}
			for port := range input {
				addr := net.JoinHostPort(ip, strconv.Itoa(int(port)))
				conn, err := dialer.DialContext(ctx, "tcp", addr)
				if err != nil {
					continue
				}
				conn.Close()
				output <- port
			}
		}()
	}

	go func() {
		wg.Wait()
		close(output)
	}()

	var open []uint16
	for port := range output {
		open = append(open, port)
	}
	slices.Sort(open)

	sub.OpenPorts = make([]Port, 0, len(open))
	for _, port := range open {
		sub.OpenPorts = append(sub.OpenPorts, Port{Port: port, IsOpen: true, Findings: []Finding{}})
	}
	p.Log.Debug().Str("host", sub.Domain).Str("ip", ip).Int("open", len(open)).Msg("port scan done")
	return sub
}

// address resolves the subdomain once, keeping the first address returned.
func (p *PortProber) address(ctx context.Context, sub Subdomain) string {
	if sub.ResolvedIP != "" {
		return sub.ResolvedIP
	}
	if p.Resolver == nil {
		return ""
	}
	if p.DNSTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.DNSTimeout)
		defer cancel()
	}
	addrs, err := p.Resolver.Resolve(ctx, sub.Domain)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}
