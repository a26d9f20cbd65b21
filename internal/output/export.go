package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vulnverified/surveyor/internal/engine"
)

// Formats selects which report files Export writes.
type Formats struct {
	JSON     bool
	Markdown bool
}

// Export writes <target>.json and/or <target>.md into dir, creating it if
// needed, and returns the paths written.
func Export(dir, target string, subs []engine.Subdomain, formats Formats) ([]string, error) {
	if !formats.JSON && !formats.Markdown {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	base := filepath.Join(dir, fileName(target))
	var written []string

	if formats.JSON {
		path := base + ".json"
		if err := writeFile(path, func(f *os.File) error { return WriteJSON(f, subs) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if formats.Markdown {
		path := base + ".md"
		if err := writeFile(path, func(f *os.File) error { return WriteMarkdown(f, target, subs) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// fileName keeps a target usable as a file name.
func fileName(target string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, target)
	name = strings.Trim(name, ".")
	if name == "" {
		return "scan"
	}
	return name
}
