package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/net/idna"

	"github.com/vulnverified/surveyor/internal/config"
	"github.com/vulnverified/surveyor/internal/engine"
	"github.com/vulnverified/surveyor/internal/output"
	"github.com/vulnverified/surveyor/internal/probe"
	"github.com/vulnverified/surveyor/internal/recon"
	"github.com/vulnverified/surveyor/internal/resolver"
	"github.com/vulnverified/surveyor/internal/wordlist"
	"github.com/vulnverified/surveyor/pkg/ports"
)

func newScanCmd(def *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <domain>",
		Short: "Enumerate, resolve, port scan and probe a domain",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	f := cmd.Flags()
	f.String("ports", def.Ports, `Ports to scan: "top100", "extended", single ports and ranges, comma separated`)
	f.Duration("timeout", def.Timeouts.Connect, "TCP connect timeout per port")
	f.Duration("dns-timeout", def.Timeouts.DNS, "Timeout per DNS lookup")
	f.Duration("scan-timeout", def.Timeouts.Scan, "Deadline for the whole scan (0 for none)")
	f.Int("concurrency", def.Concurrency.Ports, "Concurrent port connections per host")
	f.Int("enum-concurrency", def.Concurrency.Enumeration, "Concurrent subdomain sources")
	f.Int("dns-concurrency", def.Concurrency.DNS, "Concurrent DNS lookups")
	f.Int("host-concurrency", def.Concurrency.Hosts, "Hosts port scanned at once")
	f.Int("vuln-concurrency", def.Concurrency.Vulns, "Concurrent vulnerability probes")
	f.Int("brute-concurrency", def.Concurrency.Brute, "Concurrent lookups of the brute-force source")
	f.StringSlice("nameserver", def.DNS.Nameservers, "DNS server to query, repeatable (default: system resolver)")
	f.Bool("axfr", def.DNS.AXFR, "Attempt DNS zone transfers")
	f.Bool("brute", def.DNS.Brute, "Brute-force subdomains from a wordlist")
	f.String("wordlist", def.DNS.Wordlist, "Wordlist for --brute (default: embedded list)")
	f.Bool("no-cache", def.HTTP.NoCache, "Disable the HTTP response cache")
	f.String("out-dir", def.Output.Dir, "Directory for report files")
	f.Bool("json-out", def.Output.JSON, "Write <domain>.json to --out-dir")
	f.Bool("md-out", def.Output.Markdown, "Write <domain>.md to --out-dir")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	target, err := normalizeTarget(args[0])
	if err != nil {
		return err
	}

	scanPorts, err := ports.Parse(cfg.Ports)
	if err != nil {
		return fmt.Errorf("invalid --ports: %w", err)
	}

	client, err := a.httpClient()
	if err != nil {
		return err
	}
	res, err := resolver.New(cfg.DNS.Nameservers, cfg.Timeouts.DNS)
	if err != nil {
		return err
	}

	var words []string
	if cfg.DNS.Brute && cfg.DNS.Wordlist != "" {
		if words, err = wordlist.Load(cfg.DNS.Wordlist); err != nil {
			return err
		}
	}

	probes, err := probe.All(client)
	if err != nil {
		return err
	}

	scanID := uuid.NewString()
	log := a.log.With().Str("scan_id", scanID).Logger()

	progress := output.NewProgress(os.Stderr, cfg.Output.Verbose, cfg.Output.Silent, cfg.Output.NoColor)

	scanner, err := engine.New(engine.Config{
		Ports:                  scanPorts,
		EnumerationConcurrency: cfg.Concurrency.Enumeration,
		DNSConcurrency:         cfg.Concurrency.DNS,
		HostConcurrency:        cfg.Concurrency.Hosts,
		PortConcurrency:        cfg.Concurrency.Ports,
		VulnConcurrency:        cfg.Concurrency.Vulns,
		DNSTimeout:             cfg.Timeouts.DNS,
		ConnectTimeout:         cfg.Timeouts.Connect,
		ScanTimeout:            cfg.Timeouts.Scan,
	}, engine.Collaborators{
		Sources: recon.Sources(recon.Options{
			Client:           client,
			Resolver:         res,
			Brute:            cfg.DNS.Brute,
			BruteConcurrency: cfg.Concurrency.Brute,
			Wordlist:         words,
			AXFR:             cfg.DNS.AXFR,
		}),
		Probes:   probes,
		Resolver: res,
	}, progress, log)
	if err != nil {
		return err
	}

	// Clean Ctrl+C: the scan returns what it has so far.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Output.Silent {
		output.WriteHeader(os.Stderr, cfg.Output.NoColor)
	}
	log.Info().Str("target", target).Int("ports", len(scanPorts)).Msg("scan started")

	result, scanErr := scanner.Scan(ctx, target)
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) && !errors.Is(scanErr, context.DeadlineExceeded) {
		return scanErr
	}
	if scanErr != nil {
		progress.Warn(fmt.Sprintf("Scan stopped early (%v), reporting partial results", scanErr))
	}
	progress.Complete()

	paths, err := output.Export(cfg.Output.Dir, target, result, output.Formats{
		JSON:     cfg.Output.JSON,
		Markdown: cfg.Output.Markdown,
	})
	for _, p := range paths {
		progress.Detail("Wrote " + p)
	}
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	output.WriteTable(os.Stdout, result, cfg.Output.NoColor)
	output.WriteSummary(os.Stdout, target, result, cfg.Output.NoColor)

	return scanErr
}

// normalizeTarget turns user input into the ASCII domain the scan runs on.
// A URL is accepted and reduced to its host.
func normalizeTarget(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("invalid target %q: %w", raw, err)
		}
		host = u.Hostname()
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("invalid target %q: %w", raw, engine.ErrEmptyTarget)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if !strings.Contains(ascii, ".") {
		return "", fmt.Errorf("invalid target %q: not a domain name", raw)
	}
	return ascii, nil
}
