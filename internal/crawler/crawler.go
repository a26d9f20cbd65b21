// Package crawler drives a Spider over a site with a single frontier control
// loop, a pool of scraping workers and a pool of item processors.
package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Spider supplies the per-site logic the crawler runs.
type Spider[T any] interface {
	Name() string
	StartURLs() []string
	// Scrape fetches url and returns the items found on it and the URLs it
	// links to.
	Scrape(ctx context.Context, url string) ([]T, []string, error)
	Process(ctx context.Context, item T) error
}

// Config controls crawl concurrency and politeness.
type Config struct {
	// Delay is slept by a scraping worker after each page.
	Delay              time.Duration
	CrawlConcurrency   int
	ProcessConcurrency int
	// RequestsPerSecond caps scrape starts across all workers. Zero disables it.
	RequestsPerSecond float64
	// MaxURLs caps the frontier size. Zero means unbounded.
	MaxURLs int
}

// Stats summarises a finished crawl.
type Stats struct {
	Visited       int   `json:"visited"`
	Scraped       int64 `json:"scraped"`
	Failed        int64 `json:"failed"`
	Items         int64 `json:"items"`
	ProcessErrors int64 `json:"process_errors"`
}

const (
	crawlQueueFactor   = 400
	processQueueFactor = 10
)

type discovery struct {
	source string
	urls   []string
}

// Crawler runs one Spider. Run may be called again once it has returned.
type Crawler[T any] struct {
	cfg     Config
	spider  Spider[T]
	log     zerolog.Logger
	limiter *rate.Limiter

	inFlight      atomic.Int64
	scraped       atomic.Int64
	failed        atomic.Int64
	items         atomic.Int64
	processErrors atomic.Int64
}

// New returns a Crawler for spider. Concurrency values below one are raised
// to one.
func New[T any](cfg Config, spider Spider[T], log zerolog.Logger) *Crawler[T] {
	cfg.CrawlConcurrency = max(cfg.CrawlConcurrency, 1)
	cfg.ProcessConcurrency = max(cfg.ProcessConcurrency, 1)

	c := &Crawler[T]{
		cfg:    cfg,
		spider: spider,
		log:    log.With().Str("spider", spider.Name()).Logger(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(int(cfg.RequestsPerSecond), 1))
	}
	return c
}

// InFlight returns the number of scraping workers currently inside a scrape.
func (c *Crawler[T]) InFlight() int64 {
	return c.inFlight.Load()
}

// Run crawls until the frontier is quiescent or ctx is done. Every URL is
// scraped at most once. The returned error is non-nil only when ctx ended
// the crawl early.
func (c *Crawler[T]) Run(ctx context.Context) (Stats, error) {
	c.scraped.Store(0)
	c.failed.Store(0)
	c.items.Store(0)
	c.processErrors.Store(0)

	crawlCap := c.cfg.CrawlConcurrency * crawlQueueFactor
	toScrape := make(chan string, crawlCap)
	items := make(chan T, c.cfg.ProcessConcurrency*processQueueFactor)
	discovered := make(chan discovery, crawlCap)

	// Each pool reports the context error if it dropped work because of it.
	var g errgroup.Group
	g.Go(func() error {
		return c.runScrapers(ctx, toScrape, items, discovered)
	})
	g.Go(func() error {
		return c.runProcessors(ctx, items)
	})

	f := &frontier{
		visited:    make(map[string]struct{}),
		toScrape:   toScrape,
		discovered: discovered,
		maxURLs:    c.cfg.MaxURLs,
	}

	c.log.Info().Msg("crawl started")
	err := f.loop(ctx, c.spider.StartURLs())
	c.log.Debug().Int64("in_flight", c.inFlight.Load()).Msg("control loop exited")

	close(toScrape)
	for range discovered {
	}
	if werr := g.Wait(); err == nil {
		err = werr
	}

	stats := Stats{
		Visited:       len(f.visited),
		Scraped:       c.scraped.Load(),
		Failed:        c.failed.Load(),
		Items:         c.items.Load(),
		ProcessErrors: c.processErrors.Load(),
	}
	c.log.Info().
		Int("visited", stats.Visited).
		Int64("scraped", stats.Scraped).
		Int64("failed", stats.Failed).
		Int64("items", stats.Items).
		Msg("crawl finished")
	return stats, err
}

// frontier is owned by the control loop goroutine alone.
type frontier struct {
	visited    map[string]struct{}
	toScrape   chan<- string
	discovered <-chan discovery
	maxURLs    int

	// outstanding counts URLs sent to toScrape whose discovery batch has not
	// been handled yet. Zero means no URL is queued or being scraped.
	outstanding int
	// backlog holds batches received while an enqueue was blocked.
	backlog []discovery
}

func (f *frontier) loop(ctx context.Context, seeds []string) error {
	for _, url := range seeds {
		if err := f.enqueue(ctx, url); err != nil {
			return err
		}
	}

	for f.outstanding > 0 {
		var d discovery
		if len(f.backlog) > 0 {
			d, f.backlog = f.backlog[0], f.backlog[1:]
		} else {
			select {
			case d = <-f.discovered:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f.outstanding--

		f.visited[d.source] = struct{}{}
		for _, url := range d.urls {
			if err := f.enqueue(ctx, url); err != nil {
				return err
			}
		}
	}
	return nil
}

// enqueue marks url visited and sends it to the scrapers. A full queue
// blocks the control loop; batches arriving meanwhile are kept in the
// backlog so that scrapers blocked on the discovery channel can move on.
func (f *frontier) enqueue(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if _, seen := f.visited[url]; seen {
		return nil
	}
	if f.maxURLs > 0 && len(f.visited) >= f.maxURLs {
		return nil
	}
	f.visited[url] = struct{}{}

	for {
		select {
		case f.toScrape <- url:
			f.outstanding++
			return nil
		case d := <-f.discovered:
			f.backlog = append(f.backlog, d)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Crawler[T]) runScrapers(ctx context.Context, toScrape <-chan string, items chan<- T, discovered chan<- discovery) error {
	var (
		wg      sync.WaitGroup
		dropped atomic.Bool
	)
	for i := 0; i < c.cfg.CrawlConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range toScrape {
				if ctx.Err() != nil {
					dropped.Store(true)
					continue
				}
				if !c.scrapeOne(ctx, url, items, discovered) {
					dropped.Store(true)
				}
			}
		}()
	}
	wg.Wait()
	close(items)
	close(discovered)

	if dropped.Load() {
		return ctx.Err()
	}
	return nil
}

// scrapeOne reports false when the rate limiter gave up before the scrape.
func (c *Crawler[T]) scrapeOne(ctx context.Context, url string, items chan<- T, discovered chan<- discovery) bool {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	var found []string
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			discovered <- discovery{source: url}
			return false
		}
	}

	scraped, urls, err := c.spider.Scrape(ctx, url)
	if err != nil {
		c.failed.Add(1)
		c.log.Warn().Err(err).Str("url", url).Msg("scrape failed")
	} else {
		c.scraped.Add(1)
		for _, item := range scraped {
			items <- item
			c.items.Add(1)
		}
		found = urls
	}

	// Always reported, so the frontier can account for the URL.
	discovered <- discovery{source: url, urls: found}

	if c.cfg.Delay > 0 {
		t := time.NewTimer(c.cfg.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	return true
}

func (c *Crawler[T]) runProcessors(ctx context.Context, items <-chan T) error {
	var (
		wg      sync.WaitGroup
		dropped atomic.Bool
	)
	for i := 0; i < c.cfg.ProcessConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				if ctx.Err() != nil {
					dropped.Store(true)
					continue
				}
				if err := c.spider.Process(ctx, item); err != nil {
					c.processErrors.Add(1)
					c.log.Warn().Err(err).Msg("processing item failed")
				}
			}
		}()
	}
	wg.Wait()

	if dropped.Load() {
		return ctx.Err()
	}
	return nil
}
