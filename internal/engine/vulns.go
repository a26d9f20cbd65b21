package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// tlsFirstPorts are ports whose endpoints are addressed over HTTPS.
var tlsFirstPorts = map[uint16]bool{
	443: true, 8443: true, 9443: true, 6443: true, 1443: true, 4443: true,
}

// Endpoint returns the base URL probes are pointed at for host:port.
func Endpoint(host string, port uint16) string {
	scheme := "http"
	if tlsFirstPorts[port] {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

type probeTask struct {
	probe    Probe
	endpoint string
	sub      int
	port     int
}

// ProbeAll runs every probe against every open port of every subdomain under
// a single concurrency limit and appends findings in place. The mutex guards
// only the append; probe I/O always runs outside it. Probe errors are logged
// and never stop the remaining probes.
func ProbeAll(ctx context.Context, subdomains []Subdomain, probes []Probe, concurrency int, log zerolog.Logger) int {
	var tasks []probeTask
	for i, sub := range subdomains {
		for j, port := range sub.OpenPorts {
			endpoint := Endpoint(sub.Domain, port.Port)
			for _, probe := range probes {
				tasks = append(tasks, probeTask{probe: probe, endpoint: endpoint, sub: i, port: j})
			}
		}
	}
	log.Debug().Int("tasks", len(tasks)).Msg("vulnerability tasks built")

	var (
		mu    sync.Mutex
		found int
	)
	p := pool.New().WithMaxGoroutines(max(concurrency, 1))
	for _, t := range tasks {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			finding, err := t.probe.Scan(ctx, t.endpoint)
			switch {
			case err != nil:
				log.Warn().Err(err).Str("probe", t.probe.Name()).Str("endpoint", t.endpoint).Msg("probe failed")
				return
			case finding == nil:
				log.Debug().Str("probe", t.probe.Name()).Str("endpoint", t.endpoint).Msg("no finding")
				return
			}

			mu.Lock()
			port := &subdomains[t.sub].OpenPorts[t.port]
			port.Findings = append(port.Findings, *finding)
			found++
			mu.Unlock()

			log.Info().Str("probe", t.probe.Name()).Str("url", finding.URL).Msg("finding")
		})
	}
	p.Wait()
	return found
}
