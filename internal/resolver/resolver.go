// Package resolver looks up host addresses either through the system resolver
// or by querying an explicit list of nameservers with miekg/dns.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single lookup when the caller sets none.
const DefaultTimeout = 4 * time.Second

// ErrBadNameserver is returned by New for an unusable nameserver address.
var ErrBadNameserver = errors.New("invalid nameserver")

// Resolver implements engine.Resolver.
type Resolver struct {
	nameservers []string
	timeout     time.Duration
	client      *dns.Client
	system      *net.Resolver
}

// New returns a Resolver. With no nameservers it defers to the system
// resolver. Nameservers without a port get :53.
func New(nameservers []string, timeout time.Duration) (*Resolver, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := &Resolver{
		timeout: timeout,
		system:  net.DefaultResolver,
	}
	for _, ns := range nameservers {
		addr, err := NormalizeNameserver(ns)
		if err != nil {
			return nil, err
		}
		r.nameservers = append(r.nameservers, addr)
	}
	if len(r.nameservers) > 0 {
		r.client = &dns.Client{Net: "udp", Timeout: timeout}
	}
	return r, nil
}

// NormalizeNameserver returns ns as host:port, defaulting the port to 53.
func NormalizeNameserver(ns string) (string, error) {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return "", fmt.Errorf("%w: empty address", ErrBadNameserver)
	}
	host, port, err := net.SplitHostPort(ns)
	if err != nil {
		// No port, or a bare IPv6 address.
		host, port = strings.Trim(ns, "[]"), "53"
	}
	if host == "" || strings.ContainsAny(host, " /") {
		return "", fmt.Errorf("%w: %q", ErrBadNameserver, ns)
	}
	return net.JoinHostPort(host, port), nil
}

// Nameservers returns the explicit nameservers in host:port form.
func (r *Resolver) Nameservers() []string {
	return r.nameservers
}

// Resolve returns the IPv4 and IPv6 addresses of host, IPv4 first.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]string, error) {
	host = strings.TrimSuffix(host, ".")
	if len(r.nameservers) == 0 {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.system.LookupHost(ctx, host)
	}

	var (
		addrs    []string
		firstErr error
	)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		answers, err := r.query(ctx, host, qtype)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound && len(addrs) == 0 {
				return nil, err
			}
			// One record type failing does not hide the other's answers.
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, rr := range answers {
			switch rec := rr.(type) {
			case *dns.A:
				addrs = append(addrs, rec.A.String())
			case *dns.AAAA:
				addrs = append(addrs, rec.AAAA.String())
			}
		}
	}
	if len(addrs) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// LookupNS returns the authoritative nameserver hosts for domain, without
// the trailing dot.
func (r *Resolver) LookupNS(ctx context.Context, domain string) ([]string, error) {
	var hosts []string
	if len(r.nameservers) == 0 {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		records, err := r.system.LookupNS(ctx, domain)
		if err != nil {
			return nil, err
		}
		for _, ns := range records {
			hosts = append(hosts, strings.TrimSuffix(ns.Host, "."))
		}
		return hosts, nil
	}

	answers, err := r.query(ctx, domain, dns.TypeNS)
	if err != nil {
		return nil, err
	}
	for _, rr := range answers {
		if ns, ok := rr.(*dns.NS); ok {
			hosts = append(hosts, strings.TrimSuffix(ns.Ns, "."))
		}
	}
	if len(hosts) == 0 {
		return nil, &net.DNSError{Err: "no NS records", Name: domain, IsNotFound: true}
	}
	return hosts, nil
}

// query asks each nameserver in turn until one answers. NXDOMAIN is
// authoritative and stops the walk.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, ns := range r.nameservers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, _, err := r.client.ExchangeContext(ctx, msg, ns)
		if err != nil {
			lastErr = fmt.Errorf("query %s: %w", ns, err)
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp.Answer, nil
		case dns.RcodeNameError:
			return nil, &net.DNSError{Err: "no such host", Name: name, Server: ns, IsNotFound: true}
		default:
			lastErr = fmt.Errorf("query %s: %s", ns, dns.RcodeToString[resp.Rcode])
		}
	}
	return nil, &net.DNSError{Err: lastErr.Error(), Name: name, IsTemporary: true}
}
