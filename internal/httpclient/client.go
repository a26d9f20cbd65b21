// Package httpclient provides the HTTP client shared by subdomain sources,
// vulnerability probes and spiders.
package httpclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultTimeout   = 7500 * time.Millisecond
	DefaultUserAgent = "surveyor/1.0 (+https://github.com/vulnverified/surveyor)"
	DefaultMaxBody   = 50 * 1024 * 1024 // 50MB, crt.sh answers for large zones are big

	defaultCacheSize = 512
	defaultCacheTTL  = 2 * time.Minute
	maxCachedBody    = 1024 * 1024
	maxRedirects     = 5
)

// Options configures New. Zero values select the defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Proxy is an optional http, https or socks5 proxy URL.
	Proxy     string
	MaxBody   int64
	CacheSize int
	CacheTTL  time.Duration
	// NoCache disables the response cache.
	NoCache bool
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned by GetJSON for a non-200 answer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// RateLimited reports whether the upstream answered 429.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Client wraps http.Client with a per-request total timeout, a body cap and a
// short-lived cache of GET responses keyed by URL.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
	cache     *expirable.LRU[string, *Response]
}

// New builds a Client. It fails only on a malformed proxy URL.
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", opts.Proxy, err)
		}
		switch proxyURL.Scheme {
		case "http", "https", "socks5":
		default:
			return nil, fmt.Errorf("proxy %q: unsupported scheme %q", opts.Proxy, proxyURL.Scheme)
		}
		if proxyURL.Host == "" {
			return nil, fmt.Errorf("proxy %q: missing host", opts.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	c := &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBody,
	}
	if !opts.NoCache {
		c.cache = expirable.NewLRU[string, *Response](opts.CacheSize, nil, opts.CacheTTL)
	}
	return c, nil
}

// Get fetches rawURL and reads at most the configured body size. Any status
// code is a successful response; only transport failures are errors. Cached
// responses are shared, so callers must not modify them.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	if c.cache != nil {
		if resp, ok := c.cache.Get(rawURL); ok {
			return resp, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	resp := &Response{
		URL:        rawURL,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}
	if c.cache != nil && cacheable(resp) {
		c.cache.Add(rawURL, resp)
	}
	return resp, nil
}

// cacheable excludes answers a retry could change.
func cacheable(resp *Response) bool {
	if len(resp.Body) > maxCachedBody {
		return false
	}
	return resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests
}

// GetJSON fetches rawURL and decodes a 200 answer into v. Other status codes
// yield a *StatusError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// CacheLen returns the number of cached responses.
func (c *Client) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
