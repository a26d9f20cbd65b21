package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vulnverified/surveyor/internal/engine"
)

// WriteMarkdown renders the scan result as a Markdown report: one section per
// subdomain, one bullet per open port and a nested bullet per finding.
func WriteMarkdown(w io.Writer, target string, subs []engine.Subdomain) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Scan result for `%s`\n", target)
	if len(subs) == 0 {
		fmt.Fprintf(bw, "\nNo live subdomains found.\n")
	}

	for _, sub := range subs {
		ip := sub.ResolvedIP
		if ip == "" {
			ip = "unresolved"
		}
		fmt.Fprintf(bw, "\n## Subdomain %s (%s)\n\n", ip, sub.Domain)

		if len(sub.OpenPorts) == 0 {
			fmt.Fprintf(bw, "No open ports found.\n")
			continue
		}
		for _, port := range sub.OpenPorts {
			fmt.Fprintf(bw, "- Port **%d**\n", port.Port)
			for _, f := range port.Findings {
				fmt.Fprintf(bw, "  - %s\n", f)
			}
		}
	}

	return bw.Flush()
}
