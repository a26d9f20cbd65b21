// Package output renders scan results for the terminal and for report files.
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Progress writes stage progress lines to w, typically stderr. It implements
// engine.ProgressReporter.
type Progress struct {
	w       io.Writer
	verbose bool
	silent  bool
	mu      sync.Mutex
	start   time.Time

	stageStyle lipgloss.Style
	warnStyle  lipgloss.Style
}

// NewProgress creates a progress reporter. Styles are dropped when noColor
// is set.
func NewProgress(w io.Writer, verbose, silent, noColor bool) *Progress {
	p := &Progress{
		w:          w,
		verbose:    verbose,
		silent:     silent,
		start:      time.Now(),
		stageStyle: lipgloss.NewStyle(),
		warnStyle:  lipgloss.NewStyle(),
	}
	if !noColor {
		p.stageStyle = p.stageStyle.Bold(true).Foreground(lipgloss.Color("39"))
		p.warnStyle = p.warnStyle.Foreground(lipgloss.Color("214"))
	}
	return p
}

// Stage prints a stage header like "[1/4] Enumerating subdomains".
func (p *Progress) Stage(num, total int, msg string) {
	if p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", p.stageStyle.Render(fmt.Sprintf("[%d/%d]", num, total)), msg)
}

// Detail prints verbose detail (only in verbose mode).
func (p *Progress) Detail(msg string) {
	if !p.verbose || p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s\n", msg)
}

// Warn prints a warning.
func (p *Progress) Warn(msg string) {
	if p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s %s\n", p.warnStyle.Render("!"), msg)
}

// Complete prints the elapsed time since the reporter was created.
func (p *Progress) Complete() {
	if p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\nCompleted in %.1fs\n", time.Since(p.start).Seconds())
}
