// Package ports provides common port definitions for network scanning.
package ports

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Top100 is the top 100 most common TCP ports based on nmap frequency data,
// sorted ascending.
var Top100 = []uint16{
	7, 9, 13, 21, 22, 23, 25, 26, 37, 53,
	79, 80, 81, 88, 106, 110, 111, 113, 119, 135,
	139, 143, 144, 179, 199, 389, 427, 443, 444, 445,
	465, 513, 514, 515, 543, 544, 548, 554, 587, 631,
	646, 873, 990, 993, 995, 1025, 1026, 1027, 1028, 1029,
	1110, 1433, 1720, 1723, 1755, 1900, 2000, 2001, 2049, 2121,
	2717, 3000, 3128, 3306, 3389, 3986, 4899, 5000, 5009, 5051,
	5060, 5101, 5190, 5357, 5432, 5631, 5666, 5800, 5900, 6000,
	6001, 6646, 7070, 8000, 8008, 8009, 8080, 8081, 8443, 8888,
	9100, 9999, 10000, 32768, 49152, 49153, 49154, 49155, 49156, 49157,
}

// services are ports the HTTP probes target that nmap's top 100 misses.
var services = []uint16{
	1080, 1443, 2082, 2083, 2086, 2087, 2379, 4443, 5601, 6379,
	6443, 8880, 9090, 9200, 9443, 27017, 27018,
}

// Extended returns Top100 plus common dashboard, datastore and alternate
// HTTPS ports, sorted and deduplicated.
func Extended() []uint16 {
	return Merge(Top100, services)
}

// Merge returns the sorted union of the given port lists.
func Merge(lists ...[]uint16) []uint16 {
	var out []uint16
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Parse turns a port specification into a sorted, deduplicated port list.
// It accepts the named sets "top100" and "extended", single ports and
// inclusive ranges, comma separated: "top100,8000-8100,9200".
func Parse(spec string) ([]uint16, error) {
	var lists [][]uint16
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "top100":
			lists = append(lists, Top100)
			continue
		case "extended":
			lists = append(lists, Extended())
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = parsePort(hi); err != nil {
				return nil, err
			}
			if last < first {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
		}

		r := make([]uint16, 0, int(last-first)+1)
		for p := int(first); p <= int(last); p++ {
			r = append(r, uint16(p))
		}
		lists = append(lists, r)
	}

	out := Merge(lists...)
	if len(out) == 0 {
		return nil, fmt.Errorf("empty port specification %q", spec)
	}
	return out, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(n), nil
}
