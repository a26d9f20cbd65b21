package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/vulnverified/surveyor/internal/engine"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "example.com", want: "example.com"},
		{in: "  Example.COM. ", want: "example.com"},
		{in: "https://app.example.com:8443/login?x=1", want: "app.example.com"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "", wantErr: true},
		{in: "localhost", wantErr: true},
		{in: "https://", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeTarget(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeTarget(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("normalizeTarget(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

type namedSource struct{ name, desc string }

func (s namedSource) Name() string        { return s.name }
func (s namedSource) Description() string { return s.desc }
func (s namedSource) Enumerate(context.Context, string) ([]string, error) {
	return nil, nil
}

type namedProbe struct{ name, desc string }

func (p namedProbe) Name() string        { return p.name }
func (p namedProbe) Description() string { return p.desc }
func (p namedProbe) Scan(context.Context, string) (*engine.Finding, error) {
	return nil, nil
}

func TestWriteModules(t *testing.T) {
	var buf bytes.Buffer
	writeModules(&buf,
		[]engine.SubdomainSource{namedSource{"subdomains/crtsh", "Certificate transparency logs"}},
		[]engine.Probe{namedProbe{"http/git_head_disclosure", "Exposed .git/HEAD"}},
		true,
	)

	out := buf.String()
	for _, want := range []string{
		"Subdomain sources (1)",
		"subdomains/crtsh          Certificate transparency logs",
		"Vulnerability probes (1)",
		"http/git_head_disclosure  Exposed .git/HEAD",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"scan"}, {"modules"}, {"crawl", "links"}, {"crawl", "github"}, {"crawl", "cvedetails"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}

func TestScanRejectsBadTarget(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"scan", "--config", "", "--silent", "not a domain"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Error("expected error for invalid target")
	}
}
