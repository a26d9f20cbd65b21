package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vulnverified/surveyor/internal/engine"
	"github.com/vulnverified/surveyor/internal/probe"
	"github.com/vulnverified/surveyor/internal/recon"
	"github.com/vulnverified/surveyor/internal/resolver"
)

func newModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List subdomain sources and vulnerability probes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.httpClient()
			if err != nil {
				return err
			}
			res, err := resolver.New(nil, a.cfg.Timeouts.DNS)
			if err != nil {
				return err
			}
			sources := recon.Sources(recon.Options{Client: client, Resolver: res, Brute: true, AXFR: true})
			probes, err := probe.All(client)
			if err != nil {
				return err
			}

			writeModules(os.Stdout, sources, probes, a.cfg.Output.NoColor)
			return nil
		},
	}
}

func writeModules(w io.Writer, sources []engine.SubdomainSource, probes []engine.Probe, noColor bool) {
	heading, name := lipgloss.NewStyle(), lipgloss.NewStyle()
	if !noColor {
		heading = heading.Bold(true).Underline(true)
		name = name.Foreground(lipgloss.Color("39"))
	}

	width := 0
	for _, s := range sources {
		width = max(width, len(s.Name()))
	}
	for _, p := range probes {
		width = max(width, len(p.Name()))
	}

	fmt.Fprintf(w, "%s\n", heading.Render(fmt.Sprintf("Subdomain sources (%d)", len(sources))))
	for _, s := range sources {
		fmt.Fprintf(w, "  %s%s  %s\n", name.Render(s.Name()), pad(s.Name(), width), s.Description())
	}
	fmt.Fprintf(w, "\n%s\n", heading.Render(fmt.Sprintf("Vulnerability probes (%d)", len(probes))))
	for _, p := range probes {
		fmt.Fprintf(w, "  %s%s  %s\n", name.Render(p.Name()), pad(p.Name(), width), p.Description())
	}
}

func pad(s string, width int) string {
	return strings.Repeat(" ", max(width-len(s), 0))
}
