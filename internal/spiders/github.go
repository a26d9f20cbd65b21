package spiders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	githubAPI     = "https://api.github.com"
	githubPerPage = 100
)

var pageParam = regexp.MustCompile(`([?&]page=)([0-9]+)`)

// Member is one public member of a GitHub organization.
type Member struct {
	Login     string `json:"login"`
	ID        uint64 `json:"id"`
	NodeID    string `json:"node_id"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
}

// GitHub pages through the public members of an organization.
type GitHub struct {
	org     string
	baseURL string
	perPage int
	client  Fetcher
	log     zerolog.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// NewGitHub returns a spider for org writing members to out as JSON lines.
func NewGitHub(org string, client Fetcher, out io.Writer, log zerolog.Logger) (*GitHub, error) {
	org = strings.TrimSpace(org)
	if org == "" || strings.ContainsAny(org, "/?&# ") {
		return nil, fmt.Errorf("invalid organization name %q", org)
	}
	return &GitHub{
		org:     org,
		baseURL: githubAPI,
		perPage: githubPerPage,
		client:  client,
		log:     log,
		enc:     json.NewEncoder(out),
	}, nil
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) StartURLs() []string {
	return []string{fmt.Sprintf("%s/orgs/%s/public_members?per_page=%d&page=1", g.baseURL, g.org, g.perPage)}
}

// Scrape decodes one page of members. A full page means there may be more,
// so the URL of the following page is returned.
func (g *GitHub) Scrape(ctx context.Context, url string) ([]Member, []string, error) {
	var members []Member
	if err := g.client.GetJSON(ctx, url, &members); err != nil {
		return nil, nil, err
	}

	if len(members) < g.perPage {
		return members, nil, nil
	}
	next, ok := nextPage(url)
	if !ok {
		g.log.Warn().Str("url", url).Msg("failed to find page number")
		return members, nil, nil
	}
	return members, []string{next}, nil
}

func (g *GitHub) Process(ctx context.Context, m Member) error {
	g.log.Debug().Str("login", m.Login).Msg("member")

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enc.Encode(m)
}

// nextPage increments the page query parameter of url.
func nextPage(url string) (string, bool) {
	match := pageParam.FindStringSubmatchIndex(url)
	if match == nil {
		return "", false
	}
	n, err := strconv.Atoi(url[match[4]:match[5]])
	if err != nil {
		return "", false
	}
	return url[:match[4]] + strconv.Itoa(n+1) + url[match[5]:], true
}
