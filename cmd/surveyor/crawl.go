package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vulnverified/surveyor/internal/config"
	"github.com/vulnverified/surveyor/internal/crawler"
	"github.com/vulnverified/surveyor/internal/output"
	"github.com/vulnverified/surveyor/internal/spiders"
)

func newCrawlCmd(def *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a spider through the concurrent crawler",
	}

	pf := cmd.PersistentFlags()
	pf.Duration("delay", def.Crawl.Delay, "Pause after each page, per worker")
	pf.Int("crawl-concurrency", def.Crawl.Concurrency, "Concurrent page fetches")
	pf.Int("process-concurrency", def.Crawl.ProcessConcurrency, "Concurrent item processors")
	pf.Float64("rps", def.Crawl.RequestsPerSecond, "Maximum requests per second (0 for unlimited)")
	pf.Int("max-urls", def.Crawl.MaxURLs, "Stop queueing after this many URLs (0 for unlimited)")
	pf.StringP("out", "o", def.Crawl.Out, "Write JSON lines to this file instead of stdout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "links <url>",
			Short: "Crawl every same-host page reachable from a URL",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCrawl(cmd, func(a *app, out io.Writer) (func(context.Context) (crawler.Stats, error), string, error) {
					client, err := a.httpClient()
					if err != nil {
						return nil, "", err
					}
					spider, err := spiders.NewLinks(args[0], client, out, a.log)
					if err != nil {
						return nil, "", err
					}
					return crawler.New[spiders.Page](crawlerConfig(a.cfg), spider, a.log).Run, spider.Name(), nil
				})
			},
		},
		&cobra.Command{
			Use:   "github <org>",
			Short: "List the public members of a GitHub organization",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCrawl(cmd, func(a *app, out io.Writer) (func(context.Context) (crawler.Stats, error), string, error) {
					client, err := a.httpClient()
					if err != nil {
						return nil, "", err
					}
					spider, err := spiders.NewGitHub(args[0], client, out, a.log)
					if err != nil {
						return nil, "", err
					}
					return crawler.New[spiders.Member](crawlerConfig(a.cfg), spider, a.log).Run, spider.Name(), nil
				})
			},
		},
		&cobra.Command{
			Use:   "cvedetails",
			Short: "Walk the cvedetails.com vulnerability list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCrawl(cmd, func(a *app, out io.Writer) (func(context.Context) (crawler.Stats, error), string, error) {
					client, err := a.httpClient()
					if err != nil {
						return nil, "", err
					}
					spider := spiders.NewCVEDetails(client, out, a.log)
					return crawler.New[spiders.CVE](crawlerConfig(a.cfg), spider, a.log).Run, spider.Name(), nil
				})
			},
		},
	)
	return cmd
}

func crawlerConfig(cfg *config.Config) crawler.Config {
	return crawler.Config{
		Delay:              cfg.Crawl.Delay,
		CrawlConcurrency:   cfg.Crawl.Concurrency,
		ProcessConcurrency: cfg.Crawl.ProcessConcurrency,
		RequestsPerSecond:  cfg.Crawl.RequestsPerSecond,
		MaxURLs:            cfg.Crawl.MaxURLs,
	}
}

// crawlBuilder wires a spider to out and returns its crawler's Run method.
type crawlBuilder func(a *app, out io.Writer) (func(context.Context) (crawler.Stats, error), string, error)

func runCrawl(cmd *cobra.Command, build crawlBuilder) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var out io.Writer = os.Stdout
	if a.cfg.Crawl.Out != "" {
		f, err := os.Create(a.cfg.Crawl.Out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	run, name, err := build(a, out)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := run(ctx)
	logCrawl(a.log, name, stats, err)
	if !a.cfg.Output.Silent {
		output.WriteCrawlSummary(os.Stderr, name, stats, a.cfg.Output.NoColor)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func logCrawl(log zerolog.Logger, name string, stats crawler.Stats, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("spider", name).
		Int("visited", stats.Visited).
		Int64("scraped", stats.Scraped).
		Int64("failed", stats.Failed).
		Int64("items", stats.Items).
		Msg("crawl finished")
}
