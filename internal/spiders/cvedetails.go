package spiders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const (
	cveDetailsBase  = "https://www.cvedetails.com"
	cveDetailsStart = "/vulnerability-list/vulnerabilities.html"

	// Columns of a row in the vulnerability list table.
	cveColumns = 15
)

// CVE is one row of the cvedetails.com vulnerability list.
type CVE struct {
	Name              string  `json:"name"`
	URL               string  `json:"url"`
	CWEID             string  `json:"cwe_id,omitempty"`
	CWEURL            string  `json:"cwe_url,omitempty"`
	VulnerabilityType string  `json:"vulnerability_type"`
	PublishDate       string  `json:"publish_date"`
	UpdateDate        string  `json:"update_date"`
	Score             float64 `json:"score"`
	Access            string  `json:"access"`
	Complexity        string  `json:"complexity"`
	Authentication    string  `json:"authentication"`
	Confidentiality   string  `json:"confidentiality"`
	Integrity         string  `json:"integrity"`
	Availability      string  `json:"availability"`
}

// CVEDetails walks the paginated vulnerability list of cvedetails.com.
type CVEDetails struct {
	baseURL string
	client  Fetcher
	log     zerolog.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// NewCVEDetails returns a spider writing CVEs to out as JSON lines.
func NewCVEDetails(client Fetcher, out io.Writer, log zerolog.Logger) *CVEDetails {
	return &CVEDetails{
		baseURL: cveDetailsBase,
		client:  client,
		log:     log,
		enc:     json.NewEncoder(out),
	}
}

func (c *CVEDetails) Name() string { return "cvedetails" }

func (c *CVEDetails) StartURLs() []string {
	return []string{c.baseURL + cveDetailsStart}
}

// Scrape parses one list page and returns its CVEs and the pagination links.
func (c *CVEDetails) Scrape(ctx context.Context, url string) ([]CVE, []string, error) {
	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", url, err)
	}

	var cves []CVE
	doc.Find("#vulnslisttable .srrowns").Each(func(_ int, row *goquery.Selection) {
		cve, err := c.parseRow(row)
		if err != nil {
			c.log.Warn().Err(err).Str("url", url).Msg("skipping row")
			return
		}
		cves = append(cves, cve)
	})

	var pages []string
	doc.Find("#pagingb a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href = c.normalize(href); href != "" {
			pages = append(pages, href)
		}
	})
	return cves, pages, nil
}

func (c *CVEDetails) parseRow(row *goquery.Selection) (CVE, error) {
	cols := row.Find("td")
	if cols.Length() < cveColumns {
		return CVE{}, fmt.Errorf("row has %d columns, want %d", cols.Length(), cveColumns)
	}
	text := func(i int) string { return strings.TrimSpace(cols.Eq(i).Text()) }

	link := cols.Eq(1).Find("a").First()
	href, ok := link.Attr("href")
	if !ok {
		return CVE{}, fmt.Errorf("row without CVE link")
	}
	score, err := strconv.ParseFloat(text(7), 64)
	if err != nil {
		return CVE{}, fmt.Errorf("score %q: %w", text(7), err)
	}

	cve := CVE{
		Name:              strings.TrimSpace(link.Text()),
		URL:               c.normalize(href),
		VulnerabilityType: text(4),
		PublishDate:       text(5),
		UpdateDate:        text(6),
		Score:             score,
		Access:            text(9),
		Complexity:        text(10),
		Authentication:    text(11),
		Confidentiality:   text(12),
		Integrity:         text(13),
		Availability:      text(14),
	}
	if cwe := cols.Eq(2).Find("a").First(); cwe.Length() > 0 {
		cve.CWEID = strings.TrimSpace(cwe.Text())
		if href, ok := cwe.Attr("href"); ok {
			cve.CWEURL = c.normalize(href)
		}
	}
	return cve, nil
}

// normalize makes site-relative and scheme-relative links absolute.
func (c *CVEDetails) normalize(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return c.baseURL + href
	}
	return href
}

func (c *CVEDetails) Process(ctx context.Context, cve CVE) error {
	c.log.Debug().Str("cve", cve.Name).Float64("score", cve.Score).Msg("cve")

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(cve)
}
