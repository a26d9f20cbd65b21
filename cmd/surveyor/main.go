package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vulnverified/surveyor/internal/config"
	"github.com/vulnverified/surveyor/internal/httpclient"
	"github.com/vulnverified/surveyor/internal/logging"
	"github.com/vulnverified/surveyor/internal/output"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	output.Version = version

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	def := config.Default()

	rootCmd := &cobra.Command{
		Use:          "surveyor",
		Short:        "Map the attack surface of a domain",
		Long:         "External attack surface recon: subdomain enumeration, DNS resolution, port scanning and misconfiguration probes, plus a small concurrent crawler.",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default: ./surveyor.yaml or ~/.config/surveyor/surveyor.yaml)")
	pf.String("log-level", def.Log.Level, "Log level (debug, info, warn, error)")
	pf.Bool("log-json", def.Log.JSON, "Log JSON lines instead of console output")
	pf.String("log-file", def.Log.File, "Also append JSON logs to this file")
	pf.Bool("no-color", def.Output.NoColor, "Disable terminal colors")
	pf.Bool("silent", def.Output.Silent, "Results only, no progress")
	pf.BoolP("verbose", "v", def.Output.Verbose, "Verbose stage progress")
	pf.String("user-agent", def.HTTP.UserAgent, "HTTP User-Agent (default: surveyor/<version>)")
	pf.String("proxy", def.HTTP.Proxy, "HTTP, HTTPS or SOCKS5 proxy URL")
	pf.Duration("http-timeout", def.Timeouts.HTTP, "Total timeout per HTTP request")

	rootCmd.AddCommand(newScanCmd(def), newModulesCmd(), newCrawlCmd(def))

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("surveyor {{.Version}}\n")
	return rootCmd
}

// app is what every subcommand needs after flags are parsed.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, closer, err := logging.New(os.Stderr, logging.Options{
		Level:   cfg.Log.Level,
		JSON:    cfg.Log.JSON,
		NoColor: cfg.Output.NoColor,
		File:    cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, closer: closer}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

func (a *app) httpClient() (*httpclient.Client, error) {
	userAgent := a.cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = fmt.Sprintf("surveyor/%s (+https://github.com/vulnverified/surveyor)", version)
	}
	client, err := httpclient.New(httpclient.Options{
		Timeout:   a.cfg.Timeouts.HTTP,
		UserAgent: userAgent,
		Proxy:     a.cfg.HTTP.Proxy,
		NoCache:   a.cfg.HTTP.NoCache,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	return client, nil
}
