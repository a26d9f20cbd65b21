package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vulnverified/surveyor/internal/resolver"
	"github.com/vulnverified/surveyor/pkg/ports"
)

// Config represents the application configuration
type Config struct {
	Ports       string            `mapstructure:"ports"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	DNS         DNSConfig         `mapstructure:"dns"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Output      OutputConfig      `mapstructure:"output"`
	Log         LogConfig         `mapstructure:"log"`
	Crawl       CrawlConfig       `mapstructure:"crawl"`
}

// TimeoutConfig holds the per-operation timeouts. Scan bounds the whole
// pipeline; zero disables it.
type TimeoutConfig struct {
	HTTP    time.Duration `mapstructure:"http"`
	DNS     time.Duration `mapstructure:"dns"`
	Connect time.Duration `mapstructure:"connect"`
	Scan    time.Duration `mapstructure:"scan"`
}

// ConcurrencyConfig bounds each fan-out of the scan pipeline
type ConcurrencyConfig struct {
	Enumeration int `mapstructure:"enumeration"`
	DNS         int `mapstructure:"dns"`
	Hosts       int `mapstructure:"hosts"`
	Ports       int `mapstructure:"ports"`
	Vulns       int `mapstructure:"vulns"`
	Brute       int `mapstructure:"brute"`
}

// DNSConfig selects the resolver and the active DNS sources
type DNSConfig struct {
	Nameservers []string `mapstructure:"nameservers"`
	AXFR        bool     `mapstructure:"axfr"`
	Brute       bool     `mapstructure:"brute"`
	Wordlist    string   `mapstructure:"wordlist"`
}

// HTTPConfig is passed to the shared HTTP client
type HTTPConfig struct {
	Proxy     string `mapstructure:"proxy"`
	UserAgent string `mapstructure:"user_agent"`
	NoCache   bool   `mapstructure:"no_cache"`
}

// OutputConfig controls report files and terminal output
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	JSON     bool   `mapstructure:"json"`
	Markdown bool   `mapstructure:"markdown"`
	NoColor  bool   `mapstructure:"no_color"`
	Silent   bool   `mapstructure:"silent"`
	Verbose  bool   `mapstructure:"verbose"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

// CrawlConfig controls the crawl subcommands
type CrawlConfig struct {
	Delay              time.Duration `mapstructure:"delay"`
	Concurrency        int           `mapstructure:"concurrency"`
	ProcessConcurrency int           `mapstructure:"process_concurrency"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	MaxURLs            int           `mapstructure:"max_urls"`
	Out                string        `mapstructure:"out"`
}

var defaults = map[string]any{
	"ports":                     "top100",
	"timeouts.http":             7500 * time.Millisecond,
	"timeouts.dns":              4 * time.Second,
	"timeouts.connect":          3 * time.Second,
	"timeouts.scan":             time.Duration(0),
	"concurrency.enumeration":   20,
	"concurrency.dns":           100,
	"concurrency.hosts":         1,
	"concurrency.ports":         200,
	"concurrency.vulns":         20,
	"concurrency.brute":         50,
	"dns.nameservers":           []string{},
	"dns.axfr":                  false,
	"dns.brute":                 false,
	"dns.wordlist":              "",
	"http.proxy":                "",
	"http.user_agent":           "",
	"http.no_cache":             false,
	"output.dir":                "results",
	"output.json":               false,
	"output.markdown":           false,
	"output.no_color":           false,
	"output.silent":             false,
	"output.verbose":            false,
	"log.level":                 "warn",
	"log.json":                  false,
	"log.file":                  "",
	"crawl.delay":               200 * time.Millisecond,
	"crawl.concurrency":         2,
	"crawl.process_concurrency": 2,
	"crawl.requests_per_second": 0.0,
	"crawl.max_urls":            0,
	"crawl.out":                 "",
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"ports":               "ports",
	"http-timeout":        "timeouts.http",
	"dns-timeout":         "timeouts.dns",
	"timeout":             "timeouts.connect",
	"scan-timeout":        "timeouts.scan",
	"enum-concurrency":    "concurrency.enumeration",
	"dns-concurrency":     "concurrency.dns",
	"host-concurrency":    "concurrency.hosts",
	"concurrency":         "concurrency.ports",
	"vuln-concurrency":    "concurrency.vulns",
	"brute-concurrency":   "concurrency.brute",
	"nameserver":          "dns.nameservers",
	"axfr":                "dns.axfr",
	"brute":               "dns.brute",
	"wordlist":            "dns.wordlist",
	"proxy":               "http.proxy",
	"user-agent":          "http.user_agent",
	"no-cache":            "http.no_cache",
	"out-dir":             "output.dir",
	"json-out":            "output.json",
	"md-out":              "output.markdown",
	"no-color":            "output.no_color",
	"silent":              "output.silent",
	"verbose":             "output.verbose",
	"log-level":           "log.level",
	"log-json":            "log.json",
	"log-file":            "log.file",
	"delay":               "crawl.delay",
	"crawl-concurrency":   "crawl.concurrency",
	"process-concurrency": "crawl.process_concurrency",
	"rps":                 "crawl.requests_per_second",
	"max-urls":            "crawl.max_urls",
	"out":                 "crawl.out",
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load builds the configuration from defaults, then the config file, then
// SURVEYOR_* environment variables, then the flags that were set.
// If path is empty, searches for surveyor.yaml in the current directory and
// ~/.config/surveyor/ and carries on without one.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("surveyor")
		v.AddConfigPath(".")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "surveyor"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("surveyor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.Output.NoColor = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, err := ports.Parse(c.Ports); err != nil {
		errs = append(errs, fmt.Errorf("ports: %w", err))
	}

	if c.Timeouts.HTTP <= 0 {
		errs = append(errs, errors.New("timeouts.http must be positive"))
	}
	if c.Timeouts.DNS <= 0 {
		errs = append(errs, errors.New("timeouts.dns must be positive"))
	}
	if c.Timeouts.Connect <= 0 {
		errs = append(errs, errors.New("timeouts.connect must be positive"))
	}
	if c.Timeouts.Scan < 0 {
		errs = append(errs, errors.New("timeouts.scan cannot be negative"))
	}

	for name, n := range map[string]int{
		"enumeration": c.Concurrency.Enumeration,
		"dns":         c.Concurrency.DNS,
		"hosts":       c.Concurrency.Hosts,
		"ports":       c.Concurrency.Ports,
		"vulns":       c.Concurrency.Vulns,
		"brute":       c.Concurrency.Brute,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("concurrency.%s must be positive", name))
		}
	}

	for _, ns := range c.DNS.Nameservers {
		if _, err := resolver.NormalizeNameserver(ns); err != nil {
			errs = append(errs, fmt.Errorf("dns.nameservers: %w", err))
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if c.Crawl.Delay < 0 {
		errs = append(errs, errors.New("crawl.delay cannot be negative"))
	}
	if c.Crawl.Concurrency <= 0 {
		errs = append(errs, errors.New("crawl.concurrency must be positive"))
	}
	if c.Crawl.ProcessConcurrency <= 0 {
		errs = append(errs, errors.New("crawl.process_concurrency must be positive"))
	}
	if c.Crawl.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("crawl.requests_per_second cannot be negative"))
	}
	if c.Crawl.MaxURLs < 0 {
		errs = append(errs, errors.New("crawl.max_urls cannot be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
