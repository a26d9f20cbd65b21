package output

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulnverified/surveyor/internal/crawler"
	"github.com/vulnverified/surveyor/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Summary holds the headline counts of a scan.
type Summary struct {
	Subdomains int
	OpenPorts  int
	Findings   int
	ByKind     map[engine.FindingKind]int
}

// Summarize counts subdomains, open ports and findings.
func Summarize(subs []engine.Subdomain) Summary {
	s := Summary{Subdomains: len(subs), ByKind: make(map[engine.FindingKind]int)}
	for _, sub := range subs {
		s.OpenPorts += len(sub.OpenPorts)
		for _, port := range sub.OpenPorts {
			for _, f := range port.Findings {
				s.Findings++
				s.ByKind[f.Kind]++
			}
		}
	}
	return s
}

func labelStyle(noColor bool) lipgloss.Style {
	if noColor {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Bold(true)
}

// WriteHeader prints the surveyor banner.
func WriteHeader(w io.Writer, noColor bool) {
	fmt.Fprintf(w, "%s\n\n", labelStyle(noColor).Render("surveyor "+Version))
}

// WriteSummary prints the post-scan summary.
func WriteSummary(w io.Writer, target string, subs []engine.Subdomain, noColor bool) {
	s := Summarize(subs)
	label := labelStyle(noColor)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", label.Render("Target:"), target)
	fmt.Fprintf(w, "%s %d live\n", label.Render("Subdomains:"), s.Subdomains)
	fmt.Fprintf(w, "%s %d\n", label.Render("Open ports:"), s.OpenPorts)
	fmt.Fprintf(w, "%s %d\n", label.Render("Findings:"), s.Findings)

	if s.Findings == 0 {
		return
	}
	kinds := make([]engine.FindingKind, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	warn := lipgloss.NewStyle()
	if !noColor {
		warn = warn.Foreground(lipgloss.Color("214"))
	}
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s %s x%d\n", warn.Render("!"), k, s.ByKind[k])
	}
}

// WriteCrawlSummary prints the counters of a finished crawl.
func WriteCrawlSummary(w io.Writer, spider string, stats crawler.Stats, noColor bool) {
	label := labelStyle(noColor)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", label.Render("Spider:"), spider)
	fmt.Fprintf(w, "%s %d visited, %d scraped, %d failed\n", label.Render("URLs:"), stats.Visited, stats.Scraped, stats.Failed)
	fmt.Fprintf(w, "%s %d processed, %d errors\n", label.Render("Items:"), stats.Items, stats.ProcessErrors)
}
