package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/harvest/fetcher"
	"github.com/pevans/harvest/textfilter"
)

// Defaults for a harvest run.
const (
	DefaultSeedURL      = "https://www.humboldt.edu/research/z-forms-library"
	DefaultListingURL   = "https://www.humboldt.edu/research/board/meetings-minutes-agendas"
	DefaultCorpusPath   = "corpus.txt"
	DefaultPDFDir       = "meeting_pdfs"
	DefaultMetadataPath = "meeting_metadata.csv"
	DefaultLogLevel     = "info"
)

// Config is the resolved configuration of a harvest run.
type Config struct {
	LogLevel string

	SeedURL    string
	CorpusPath string
	Workers    int

	ListingURL   string
	PDFDir       string
	MetadataPath string
	HeadingTags  []string
	ValidatePDFs bool

	Fetch fetcher.Config

	// Path to the SQLite run catalog; empty disables it
	CatalogDSN string

	SocialDomains []string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:      DefaultLogLevel,
		SeedURL:       DefaultSeedURL,
		CorpusPath:    DefaultCorpusPath,
		Workers:       1,
		ListingURL:    DefaultListingURL,
		PDFDir:        DefaultPDFDir,
		MetadataPath:  DefaultMetadataPath,
		HeadingTags:   []string{"h3"},
		Fetch:         *fetcher.DefaultConfig(),
		SocialDomains: append([]string(nil), textfilter.SocialMediaDomains...),
	}
}

// Load builds a configuration from the defaults, the config file at path
// (see LoadConfigFile) and HARVEST_* environment variables, in that order of
// precedence.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	file, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != nil {
		if err := cfg.ApplyFile(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFile overrides cfg with every field set in file.
func (c *Config) ApplyFile(file *FileConfig) error {
	setString(&c.LogLevel, file.LogLevel)

	setString(&c.SeedURL, file.Crawl.SeedURL)
	setString(&c.CorpusPath, file.Crawl.Output)
	if file.Crawl.Workers > 0 {
		c.Workers = file.Crawl.Workers
	}

	setString(&c.ListingURL, file.PDFs.ListingURL)
	setString(&c.PDFDir, file.PDFs.Dir)
	setString(&c.MetadataPath, file.PDFs.Metadata)
	if len(file.PDFs.HeadingTags) > 0 {
		c.HeadingTags = file.PDFs.HeadingTags
	}
	if file.PDFs.Validate != nil {
		c.ValidatePDFs = *file.PDFs.Validate
	}

	if err := c.applyFetch(file.Fetch); err != nil {
		return err
	}

	setString(&c.CatalogDSN, file.Catalog.DSN)
	if len(file.Clean.Domains) > 0 {
		c.SocialDomains = file.Clean.Domains
	}

	return nil
}

func (c *Config) applyFetch(fc FetchConfig) error {
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"fetch.page_timeout", fc.PageTimeout, &c.Fetch.PageTimeout},
		{"fetch.download_timeout", fc.DownloadTimeout, &c.Fetch.DownloadTimeout},
		{"fetch.delay", fc.Delay, &c.Fetch.Delay},
		{"fetch.retry_wait", fc.RetryWait, &c.Fetch.RetryWait},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.name, d.value); err != nil {
			return err
		}
	}

	if fc.Retries != nil {
		if *fc.Retries < 0 {
			return fmt.Errorf("invalid fetch.retries: must not be negative")
		}
		c.Fetch.Retries = *fc.Retries
	}
	if fc.RespectRobots != nil {
		c.Fetch.RespectRobots = *fc.RespectRobots
	}
	setString(&c.Fetch.UserAgent, fc.UserAgent)

	return nil
}

// ApplyEnv overrides cfg with HARVEST_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString(&c.LogLevel, getenv("HARVEST_LOG_LEVEL"))
	setString(&c.SeedURL, getenv("HARVEST_SEED_URL"))
	setString(&c.CorpusPath, getenv("HARVEST_OUTPUT"))
	setString(&c.ListingURL, getenv("HARVEST_LISTING_URL"))
	setString(&c.PDFDir, getenv("HARVEST_PDF_DIR"))
	setString(&c.MetadataPath, getenv("HARVEST_METADATA"))
	setString(&c.CatalogDSN, getenv("HARVEST_CATALOG_DSN"))
	setString(&c.Fetch.UserAgent, getenv("HARVEST_USER_AGENT"))

	if err := setDuration(&c.Fetch.Delay, "HARVEST_DELAY", getenv("HARVEST_DELAY")); err != nil {
		return err
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"HARVEST_WORKERS", &c.Workers},
		{"HARVEST_RETRIES", &c.Fetch.Retries},
	}
	for _, i := range ints {
		value := getenv(i.name)
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", i.name, value)
		}
		*i.dst = n
	}

	if value := getenv("HARVEST_RESPECT_ROBOTS"); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid HARVEST_RESPECT_ROBOTS: %q", value)
		}
		c.Fetch.RespectRobots = b
	}

	return nil
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid %s: must not be negative", name)
	}
	*dst = d
	return nil
}
