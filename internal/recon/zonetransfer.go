package recon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const (
	axfrDialTimeout = 10 * time.Second
	axfrReadTimeout = 30 * time.Second
)

// ZoneTransfer asks every authoritative nameserver of the target for a full
// zone transfer. Most servers refuse, which is not an error.
type ZoneTransfer struct {
	resolver DNS
	port     string
}

func NewZoneTransfer(resolver DNS) *ZoneTransfer {
	return &ZoneTransfer{resolver: resolver, port: "53"}
}

func (z *ZoneTransfer) Name() string { return "subdomains/axfr" }

func (z *ZoneTransfer) Description() string {
	return "Attempt a DNS zone transfer (AXFR) against each authoritative nameserver"
}

func (z *ZoneTransfer) Enumerate(ctx context.Context, domain string) ([]string, error) {
	nameservers, err := z.resolver.LookupNS(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("NS lookup for %s: %w", domain, err)
	}
	if len(nameservers) == 0 {
		return nil, fmt.Errorf("no NS records for %s", domain)
	}

	set := newHostSet(domain)
	for _, ns := range nameservers {
		if err := ctx.Err(); err != nil {
			return set.hosts, err
		}

		names, err := z.transfer(domain, ns)
		if err != nil {
			continue
		}
		for _, name := range names {
			set.add(name)
		}
	}
	return set.hosts, nil
}

// transfer performs AXFR against one nameserver and returns every owner name
// in the zone.
func (z *ZoneTransfer) transfer(domain, nameserver string) ([]string, error) {
	t := &dns.Transfer{
		DialTimeout: axfrDialTimeout,
		ReadTimeout: axfrReadTimeout,
	}

	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(domain))

	channel, err := t.In(msg, net.JoinHostPort(nameserver, z.port))
	if err != nil {
		return nil, fmt.Errorf("AXFR to %s: %w", nameserver, err)
	}

	var names []string
	for envelope := range channel {
		if envelope.Error != nil {
			return nil, fmt.Errorf("AXFR envelope from %s: %w", nameserver, envelope.Error)
		}
		for _, rr := range envelope.RR {
			names = append(names, rr.Header().Name)
		}
	}
	return names, nil
}
