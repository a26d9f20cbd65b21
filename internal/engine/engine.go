package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Config holds the runtime configuration for a scan.
type Config struct {
	Ports []uint16

	EnumerationConcurrency int
	DNSConcurrency         int
	HostConcurrency        int
	PortConcurrency        int
	VulnConcurrency        int

	DNSTimeout     time.Duration
	ConnectTimeout time.Duration

	// ScanTimeout bounds the whole pipeline. Zero means no deadline beyond
	// the caller's context.
	ScanTimeout time.Duration
}

// Collaborators holds the injectable pieces the pipeline drives.
type Collaborators struct {
	Sources  []SubdomainSource
	Probes   []Probe
	Resolver Resolver
}

// State is a step of the scan pipeline. States only ever move forward.
type State int

const (
	Enumerating State = iota
	Resolving
	PortScanning
	ProbingVulnerabilities
	Done
)

func (s State) String() string {
	switch s {
	case Enumerating:
		return "enumerating"
	case Resolving:
		return "resolving"
	case PortScanning:
		return "port-scanning"
	case ProbingVulnerabilities:
		return "probing-vulnerabilities"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const totalStages = 4

// Scanner sequences enumeration, DNS filtering, port scanning and
// vulnerability probing. A Scanner runs one scan at a time.
type Scanner struct {
	cfg      Config
	collab   Collaborators
	progress ProgressReporter
	log      zerolog.Logger
	state    State
}

// New validates the collaborators and returns a Scanner. progress may be nil.
func New(cfg Config, collab Collaborators, progress ProgressReporter, log zerolog.Logger) (*Scanner, error) {
	if collab.Resolver == nil {
		return nil, ErrNoResolver
	}
	if len(collab.Sources) == 0 {
		return nil, ErrNoSources
	}
	if progress == nil {
		progress = noopProgress{}
	}
	return &Scanner{cfg: cfg, collab: collab, progress: progress, log: log}, nil
}

// State returns the pipeline state the scanner last entered.
func (s *Scanner) State() State {
	return s.state
}

// Scan runs the full pipeline for target. Per-item failures are absorbed by
// each stage. If ctx or the configured ScanTimeout expires, Scan stops at the
// next stage boundary and returns the partial collection with the context
// error.
func (s *Scanner) Scan(ctx context.Context, target string) ([]Subdomain, error) {
	target = normalizeHost(target)
	if target == "" {
		return nil, ErrEmptyTarget
	}
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}
	log := s.log.With().Str("target", target).Logger()

	s.enter(log, Enumerating, "Enumerating subdomains...")
	subdomains := Enumerate(ctx, target, s.collab.Sources, s.cfg.EnumerationConcurrency, log)
	s.progress.Detail(fmt.Sprintf("Found %d unique candidate hosts", len(subdomains)))
	if err := ctx.Err(); err != nil {
		return subdomains, fmt.Errorf("scan interrupted while %s: %w", s.state, err)
	}

	s.enter(log, Resolving, fmt.Sprintf("Resolving %d hosts...", len(subdomains)))
	subdomains = ResolveAll(ctx, subdomains, s.collab.Resolver, s.cfg.DNSConcurrency, s.cfg.DNSTimeout, log)
	s.progress.Detail(fmt.Sprintf("%d hosts resolved", len(subdomains)))
	if err := ctx.Err(); err != nil {
		return subdomains, fmt.Errorf("scan interrupted while %s: %w", s.state, err)
	}
	if len(subdomains) == 0 {
		s.progress.Warn("No live hosts found, skipping port scan and vulnerability probes")
		s.enter(log, Done, "")
		return []Subdomain{}, nil
	}

	s.enter(log, PortScanning, fmt.Sprintf("Scanning %d ports across %d hosts...", len(s.cfg.Ports), len(subdomains)))
	subdomains = s.scanPorts(ctx, subdomains, log)
	openCount := 0
	for _, sub := range subdomains {
		openCount += len(sub.OpenPorts)
	}
	s.progress.Detail(fmt.Sprintf("Found %d open ports", openCount))
	if err := ctx.Err(); err != nil {
		return subdomains, fmt.Errorf("scan interrupted while %s: %w", s.state, err)
	}
	if openCount == 0 {
		s.progress.Warn("No open ports found, skipping vulnerability probes")
		s.enter(log, Done, "")
		return subdomains, nil
	}

	s.enter(log, ProbingVulnerabilities, fmt.Sprintf("Running %d probes against %d open ports...", len(s.collab.Probes), openCount))
	found := ProbeAll(ctx, subdomains, s.collab.Probes, s.cfg.VulnConcurrency, log)
	s.progress.Detail(fmt.Sprintf("Recorded %d findings", found))
	if err := ctx.Err(); err != nil {
		return subdomains, fmt.Errorf("scan interrupted while %s: %w", s.state, err)
	}

	s.enter(log, Done, "")
	return subdomains, nil
}

func (s *Scanner) scanPorts(ctx context.Context, subdomains []Subdomain, log zerolog.Logger) []Subdomain {
	prober := &PortProber{
		Resolver:    s.collab.Resolver,
		Ports:       s.cfg.Ports,
		Concurrency: s.cfg.PortConcurrency,
		Timeout:     s.cfg.ConnectTimeout,
		DNSTimeout:  s.cfg.DNSTimeout,
		Log:         log,
	}

	scanned := make([]Subdomain, len(subdomains))
	p := pool.New().WithMaxGoroutines(max(s.cfg.HostConcurrency, 1))
	for i, sub := range subdomains {
		p.Go(func() {
			scanned[i] = prober.Probe(ctx, sub)
		})
	}
	p.Wait()
	return scanned
}

// enter moves the pipeline forward. Backward or repeated transitions are a
// programming error.
func (s *Scanner) enter(log zerolog.Logger, next State, msg string) {
	if next != Enumerating && next <= s.state {
		panic(fmt.Sprintf("engine: invalid transition %s -> %s", s.state, next))
	}
	s.state = next
	log.Info().Stringer("state", next).Msg("pipeline state")
	if next != Done {
		s.progress.Stage(int(next)+1, totalStages, msg)
	}
}
