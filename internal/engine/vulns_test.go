package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func scannedSubdomains() []Subdomain {
	return []Subdomain{
		{Domain: "a.example.com", OpenPorts: []Port{{Port: 80, IsOpen: true}, {Port: 443, IsOpen: true}}},
		{Domain: "b.example.com", OpenPorts: []Port{{Port: 8080, IsOpen: true}}},
		{Domain: "c.example.com", OpenPorts: []Port{}},
	}
}

func TestProbeAll_ErrorDoesNotSuppressFinding(t *testing.T) {
	failing := &mockProbe{name: "http/failing", err: errors.New("connection reset")}
	matching := &mockProbe{name: "http/matching", kind: DotEnvDisclosure}
	subs := scannedSubdomains()

	found := ProbeAll(context.Background(), subs, []Probe{failing, matching}, 4, zerolog.Nop())

	if found != 3 {
		t.Errorf("found = %d, want 3", found)
	}
	for _, sub := range subs {
		for _, port := range sub.OpenPorts {
			if len(port.Findings) != 1 {
				t.Errorf("%s:%d findings = %v, want 1", sub.Domain, port.Port, port.Findings)
				continue
			}
			if port.Findings[0].Kind != DotEnvDisclosure {
				t.Errorf("kind = %s, want DotEnvDisclosure", port.Findings[0].Kind)
			}
		}
	}
	if len(failing.scanned) != 3 {
		t.Errorf("failing probe ran %d times, want 3", len(failing.scanned))
	}
}

func TestProbeAll_NoFindingAppendsNothing(t *testing.T) {
	silent := &mockProbe{name: "http/silent"}
	subs := scannedSubdomains()

	found := ProbeAll(context.Background(), subs, []Probe{silent}, 2, zerolog.Nop())

	if found != 0 {
		t.Errorf("found = %d, want 0", found)
	}
	for _, sub := range subs {
		for _, port := range sub.OpenPorts {
			if len(port.Findings) != 0 {
				t.Errorf("%s:%d got findings %v from a silent probe", sub.Domain, port.Port, port.Findings)
			}
		}
	}
}

func TestProbeAll_CrossProduct(t *testing.T) {
	p1 := &mockProbe{name: "http/one"}
	p2 := &mockProbe{name: "http/two"}
	subs := scannedSubdomains()

	ProbeAll(context.Background(), subs, []Probe{p1, p2}, 1, zerolog.Nop())

	want := map[string]bool{
		"http://a.example.com:80":   true,
		"https://a.example.com:443": true,
		"http://b.example.com:8080": true,
	}
	for _, p := range []*mockProbe{p1, p2} {
		if len(p.scanned) != len(want) {
			t.Errorf("%s scanned %v, want %d endpoints", p.name, p.scanned, len(want))
		}
		for _, ep := range p.scanned {
			if !want[ep] {
				t.Errorf("%s scanned unexpected endpoint %s", p.name, ep)
			}
		}
	}
}

func TestProbeAll_MultipleFindingsSamePort(t *testing.T) {
	probes := []Probe{
		&mockProbe{name: "http/git", kind: GitHeadDisclosure},
		&mockProbe{name: "http/env", kind: DotEnvDisclosure},
		&mockProbe{name: "http/ds", kind: DsStoreDisclosure},
	}
	subs := []Subdomain{{Domain: "x.example.com", OpenPorts: []Port{{Port: 80, IsOpen: true}}}}

	ProbeAll(context.Background(), subs, probes, 3, zerolog.Nop())

	if got := len(subs[0].OpenPorts[0].Findings); got != 3 {
		t.Errorf("findings = %d, want 3", got)
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		port uint16
		want string
	}{
		{80, "http://example.com:80"},
		{443, "https://example.com:443"},
		{8443, "https://example.com:8443"},
		{8080, "http://example.com:8080"},
	}
	for _, tt := range tests {
		if got := Endpoint("example.com", tt.port); got != tt.want {
			t.Errorf("Endpoint(%d) = %q, want %q", tt.port, got, tt.want)
		}
	}
}
