// Package engine orchestrates the surveyor scan pipeline.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Subdomain is a discovered hostname together with everything later stages
// learned about it.
type Subdomain struct {
	Domain     string `json:"domain"`
	ResolvedIP string `json:"resolved_ip,omitempty"`
	OpenPorts  []Port `json:"open_ports"`
}

// Port is a TCP port that accepted a connection during the port scan.
type Port struct {
	Port     uint16    `json:"port"`
	IsOpen   bool      `json:"is_open"`
	Findings []Finding `json:"findings"`
}

// FindingKind tags a Finding with the probe that produced it.
type FindingKind string

const (
	GitlabOpenRegistrations            FindingKind = "GitlabOpenRegistrations"
	GitHeadDisclosure                  FindingKind = "GitHeadDisclosure"
	GitDirectoryDisclosure             FindingKind = "GitDirectoryDisclosure"
	GitConfigDisclosure                FindingKind = "GitConfigDisclosure"
	DotEnvDisclosure                   FindingKind = "DotEnvDisclosure"
	DsStoreDisclosure                  FindingKind = "DsStoreDisclosure"
	DirectoryListingDisclosure         FindingKind = "DirectoryListingDisclosure"
	EtcdUnauthenticatedAccess          FindingKind = "EtcdUnauthenticatedAccess"
	ElasticsearchUnauthenticatedAccess FindingKind = "ElasticsearchUnauthenticatedAccess"
	KibanaUnauthenticatedAccess        FindingKind = "KibanaUnauthenticatedAccess"
	PrometheusUnauthenticatedAccess    FindingKind = "PrometheusUnauthenticatedAccess"
	TraefikUnauthenticatedAccess       FindingKind = "TraefikUnauthenticatedAccess"
	Cve2017_9506                       FindingKind = "Cve2017_9506"
	Cve2018_7600                       FindingKind = "Cve2018_7600"
)

var knownKinds = map[FindingKind]bool{
	GitlabOpenRegistrations:            true,
	GitHeadDisclosure:                  true,
	GitDirectoryDisclosure:             true,
	GitConfigDisclosure:                true,
	DotEnvDisclosure:                   true,
	DsStoreDisclosure:                  true,
	DirectoryListingDisclosure:         true,
	EtcdUnauthenticatedAccess:          true,
	ElasticsearchUnauthenticatedAccess: true,
	KibanaUnauthenticatedAccess:        true,
	PrometheusUnauthenticatedAccess:    true,
	TraefikUnauthenticatedAccess:       true,
	Cve2017_9506:                       true,
	Cve2018_7600:                       true,
}

// Valid reports whether k is one of the declared finding kinds.
func (k FindingKind) Valid() bool {
	return knownKinds[k]
}

// Finding records that a probe matched an endpoint. URL is the evidence.
type Finding struct {
	Kind FindingKind
	URL  string
}

// String renders the finding as Kind("url").
func (f Finding) String() string {
	return fmt.Sprintf("%s(%q)", f.Kind, f.URL)
}

// MarshalJSON encodes the finding externally tagged: {"Kind": "url"}.
func (f Finding) MarshalJSON() ([]byte, error) {
	if !f.Kind.Valid() {
		return nil, fmt.Errorf("unknown finding kind %q", f.Kind)
	}
	return json.Marshal(map[FindingKind]string{f.Kind: f.URL})
}

// UnmarshalJSON decodes the externally tagged form written by MarshalJSON.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var m map[FindingKind]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("finding: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("finding: expected exactly one tag, got %d", len(m))
	}
	for kind, url := range m {
		if !kind.Valid() {
			return fmt.Errorf("finding: unknown kind %q", kind)
		}
		f.Kind = kind
		f.URL = url
	}
	return nil
}

var (
	// ErrEmptyTarget is returned when Scan is called without a target.
	ErrEmptyTarget = errors.New("target domain is required")
	// ErrNoSources is returned when no subdomain source is configured.
	ErrNoSources = errors.New("no subdomain sources configured")
	// ErrNoResolver is returned when the scanner has no DNS resolver.
	ErrNoResolver = errors.New("no DNS resolver configured")
)

// SubdomainSource discovers candidate hostnames for a domain.
type SubdomainSource interface {
	Name() string
	Description() string
	Enumerate(ctx context.Context, domain string) ([]string, error)
}

// Probe checks a single HTTP endpoint for one misconfiguration.
// A nil Finding with a nil error means the endpoint did not match.
type Probe interface {
	Name() string
	Description() string
	Scan(ctx context.Context, endpoint string) (*Finding, error)
}

// Resolver looks up the addresses of a hostname.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]string, error)
}

// ProgressReporter is called by the engine to report stage progress.
type ProgressReporter interface {
	Stage(num, total int, msg string)
	Detail(msg string)
	Warn(msg string)
}

type noopProgress struct{}

func (noopProgress) Stage(int, int, string) {}
func (noopProgress) Detail(string)          {}
func (noopProgress) Warn(string)            {}
