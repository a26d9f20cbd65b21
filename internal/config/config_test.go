package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surveyor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Ports != "top100" {
		t.Errorf("ports = %q", cfg.Ports)
	}
	if cfg.Timeouts.HTTP != 7500*time.Millisecond || cfg.Timeouts.DNS != 4*time.Second || cfg.Timeouts.Connect != 3*time.Second {
		t.Errorf("timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Concurrency.DNS != 100 || cfg.Concurrency.Ports != 200 {
		t.Errorf("concurrency = %+v", cfg.Concurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
ports: "80,443"
timeouts:
  dns: 2s
concurrency:
  vulns: 5
dns:
  nameservers: ["1.1.1.1", "8.8.8.8:53"]
  brute: true
output:
  dir: /tmp/reports
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ports != "80,443" || cfg.Timeouts.DNS != 2*time.Second || cfg.Concurrency.Vulns != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.DNS.Nameservers) != 2 || !cfg.DNS.Brute || cfg.Output.Dir != "/tmp/reports" {
		t.Errorf("dns = %+v, output = %+v", cfg.DNS, cfg.Output)
	}
	// Untouched keys keep their defaults.
	if cfg.Timeouts.HTTP != 7500*time.Millisecond {
		t.Errorf("http timeout = %v", cfg.Timeouts.HTTP)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "concurrency:\n  ports: 50\n")
	t.Setenv("SURVEYOR_CONCURRENCY_PORTS", "75")
	t.Setenv("SURVEYOR_TIMEOUTS_CONNECT", "1500ms")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency.Ports != 75 || cfg.Timeouts.Connect != 1500*time.Millisecond {
		t.Errorf("concurrency.ports = %d, timeouts.connect = %v", cfg.Concurrency.Ports, cfg.Timeouts.Connect)
	}
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "concurrency:\n  ports: 50\nports: \"22\"\n")
	t.Setenv("SURVEYOR_CONCURRENCY_PORTS", "75")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", 200, "")
	flags.String("ports", "top100", "")
	flags.StringSlice("nameserver", nil, "")
	flags.Bool("axfr", false, "")
	if err := flags.Parse([]string{"--concurrency", "10", "--nameserver", "9.9.9.9", "--axfr"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency.Ports != 10 {
		t.Errorf("concurrency.ports = %d, want 10", cfg.Concurrency.Ports)
	}
	// Unset flags do not shadow the file.
	if cfg.Ports != "22" {
		t.Errorf("ports = %q, want file value", cfg.Ports)
	}
	if len(cfg.DNS.Nameservers) != 1 || cfg.DNS.Nameservers[0] != "9.9.9.9" || !cfg.DNS.AXFR {
		t.Errorf("dns = %+v", cfg.DNS)
	}
}

func TestLoad_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	cfg, err := Load(writeConfig(t, ""), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Output.NoColor {
		t.Error("NO_COLOR not honoured")
	}
}

func TestLoad_InvalidFails(t *testing.T) {
	path := writeConfig(t, "concurrency:\n  dns: 0\n")
	_, err := Load(path, nil)
	if err == nil || !strings.Contains(err.Error(), "concurrency.dns must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad ports", func(c *Config) { c.Ports = "http" }, "ports:"},
		{"zero http timeout", func(c *Config) { c.Timeouts.HTTP = 0 }, "timeouts.http must be positive"},
		{"negative scan timeout", func(c *Config) { c.Timeouts.Scan = -time.Second }, "timeouts.scan cannot be negative"},
		{"zero vulns", func(c *Config) { c.Concurrency.Vulns = 0 }, "concurrency.vulns must be positive"},
		{"bad nameserver", func(c *Config) { c.DNS.Nameservers = []string{"bad host"} }, "dns.nameservers"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative rps", func(c *Config) { c.Crawl.RequestsPerSecond = -1 }, "crawl.requests_per_second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.DNS = 0
	cfg.Concurrency.Hosts = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "timeouts.dns") || !strings.Contains(msg, "concurrency.hosts") {
		t.Errorf("missing joined errors: %v", msg)
	}
}
