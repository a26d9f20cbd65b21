// Package wordlist provides the subdomain labels used for DNS brute force.
package wordlist

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

//go:embed subdomains.txt
var embedded string

var (
	once     sync.Once
	defaults []string
)

// Subdomains returns the embedded wordlist. The slice is shared and must not
// be modified.
func Subdomains() []string {
	once.Do(func() {
		defaults, _ = Parse(strings.NewReader(embedded))
	})
	return defaults
}

// Load reads a wordlist file in the same format as the embedded one.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	words, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read wordlist %s: %w", path, err)
	}
	return words, nil
}

// Parse reads one label per line. Blank lines and # comments are skipped,
// labels are lowercased and duplicates dropped.
func Parse(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	var words []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			words = append(words, line)
		}
	}
	return words, scanner.Err()
}
