// Package probe implements the HTTP vulnerability probes run against every
// open port. Each probe is a rule from an embedded catalog: one GET to a path
// under the endpoint and a set of body markers that must match.
package probe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/vulnverified/surveyor/internal/engine"
	"github.com/vulnverified/surveyor/internal/httpclient"
)

//go:embed catalog.json
var catalogJSON []byte

// Fetcher is the HTTP capability probes need.
type Fetcher interface {
	Get(ctx context.Context, url string) (*httpclient.Response, error)
}

// Rule describes one probe.
type Rule struct {
	Kind        engine.FindingKind `json:"kind"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	// Path is appended to the endpoint. Empty probes the endpoint itself.
	Path  string  `json:"path"`
	Match Matcher `json:"match"`
}

// Matcher holds the body conditions of a rule. All set conditions must hold,
// and the response status must be 2xx.
type Matcher struct {
	Prefix          string   `json:"prefix,omitempty"`
	All             []string `json:"all,omitempty"`
	Any             []string `json:"any,omitempty"`
	None            []string `json:"none,omitempty"`
	Regex           string   `json:"regex,omitempty"`
	MagicHex        string   `json:"magic_hex,omitempty"`
	MaxLength       int      `json:"max_length,omitempty"`
	CaseInsensitive bool     `json:"case_insensitive,omitempty"`

	regex *regexp.Regexp
	magic []byte
}

var (
	catalog     []Rule
	catalogErr  error
	catalogOnce sync.Once
)

// Catalog returns the embedded rules, parsed and compiled once.
func Catalog() ([]Rule, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseCatalog(catalogJSON)
	})
	return catalog, catalogErr
}

func parseCatalog(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse probe catalog: %w", err)
	}

	seen := make(map[string]bool, len(rules))
	for i := range rules {
		r := &rules[i]
		if !r.Kind.Valid() {
			return nil, fmt.Errorf("probe %q: unknown finding kind %q", r.Name, r.Kind)
		}
		if r.Name == "" || seen[r.Name] {
			return nil, fmt.Errorf("probe %q: missing or duplicate name", r.Name)
		}
		seen[r.Name] = true
		if err := r.Match.compile(); err != nil {
			return nil, fmt.Errorf("probe %q: %w", r.Name, err)
		}
	}
	return rules, nil
}

func (m *Matcher) compile() error {
	if m.Regex != "" {
		expr := m.Regex
		if m.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("compile regex: %w", err)
		}
		m.regex = re
	}
	if m.MagicHex != "" {
		magic, err := hex.DecodeString(m.MagicHex)
		if err != nil {
			return fmt.Errorf("decode magic bytes: %w", err)
		}
		m.magic = magic
	}
	return nil
}

// Matches reports whether body satisfies every condition of m.
func (m *Matcher) Matches(body []byte) bool {
	if m.MaxLength > 0 && len([]rune(string(body))) >= m.MaxLength {
		return false
	}
	if m.magic != nil && !bytes.HasPrefix(body, m.magic) {
		return false
	}
	if m.regex != nil && !m.regex.Match(body) {
		return false
	}

	text := string(body)
	fold := func(s string) string { return s }
	if m.CaseInsensitive {
		fold = strings.ToLower
		text = fold(text)
	}

	if m.Prefix != "" && !strings.HasPrefix(strings.TrimSpace(text), fold(m.Prefix)) {
		return false
	}
	for _, s := range m.All {
		if !strings.Contains(text, fold(s)) {
			return false
		}
	}
	for _, s := range m.None {
		if strings.Contains(text, fold(s)) {
			return false
		}
	}
	if len(m.Any) > 0 {
		for _, s := range m.Any {
			if strings.Contains(text, fold(s)) {
				return true
			}
		}
		return false
	}
	return true
}

// HTTPProbe runs one Rule. It implements engine.Probe.
type HTTPProbe struct {
	rule   Rule
	client Fetcher
}

// New returns a probe for rule.
func New(rule Rule, client Fetcher) *HTTPProbe {
	return &HTTPProbe{rule: rule, client: client}
}

func (p *HTTPProbe) Name() string        { return p.rule.Name }
func (p *HTTPProbe) Description() string { return p.rule.Description }

// Scan fetches the rule's path under endpoint. Transport errors are returned;
// a non-2xx answer or a body that does not match is simply no finding.
func (p *HTTPProbe) Scan(ctx context.Context, endpoint string) (*engine.Finding, error) {
	url := strings.TrimSuffix(endpoint, "/") + p.rule.Path

	resp, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil
	}
	if !p.rule.Match.Matches(resp.Body) {
		return nil, nil
	}
	return &engine.Finding{Kind: p.rule.Kind, URL: url}, nil
}

// All returns a probe for every catalog rule.
func All(client Fetcher) ([]engine.Probe, error) {
	rules, err := Catalog()
	if err != nil {
		return nil, err
	}

	probes := make([]engine.Probe, 0, len(rules))
	for _, r := range rules {
		probes = append(probes, New(r, client))
	}
	return probes, nil
}
