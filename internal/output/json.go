package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vulnverified/surveyor/internal/engine"
)

// WriteJSON writes the scan result as an indented JSON array of subdomains.
func WriteJSON(w io.Writer, subs []engine.Subdomain) error {
	if subs == nil {
		subs = []engine.Subdomain{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(subs)
}

// ReadJSON parses a report previously written by WriteJSON.
func ReadJSON(r io.Reader) ([]engine.Subdomain, error) {
	var subs []engine.Subdomain
	if err := json.NewDecoder(r).Decode(&subs); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return subs, nil
}
