package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pevans/harvest"
	"github.com/pevans/harvest/catalog"
	"github.com/pevans/harvest/config"
	"github.com/spf13/cobra"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// app holds state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	catalogDSN string

	cfg    *config.Config
	logger *log.Logger
}

func main() {
	// Cancel the run on SIGINT/SIGTERM; output is only written by runs that
	// complete.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest a text and PDF corpus from a single site",
		Long: `harvest collects the visible text of a seed page and the same-domain
pages it links to into one corpus file, and downloads the PDFs linked from
a listing page along with a metadata table of their sections, titles and
meeting dates.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", getEnv("HARVEST_CONFIG", ""), "Path to config file (HARVEST_CONFIG, default ~/.harvest/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (HARVEST_LOG_LEVEL)")
	flags.StringVar(&a.catalogDSN, "catalog", "", "Path to SQLite run catalog; empty disables it (HARVEST_CATALOG_DSN)")

	root.AddCommand(
		newCrawlCommand(a),
		newPDFsCommand(a),
		newLinksCommand(a),
		newCleanCommand(a),
		newRunsCommand(a),
	)

	return root
}

// init loads configuration and builds the logger. Flags win over the
// environment, which wins over the config file.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath, os.Getenv)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.catalogDSN != "" {
		cfg.CatalogDSN = a.catalogDSN
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           lvl,
		Prefix:          "harvest",
	}), nil
}

// openCatalog opens the run catalog, or returns nil when none is
// configured.
func (a *app) openCatalog() (*catalog.Store, error) {
	if a.cfg.CatalogDSN == "" {
		return nil, nil
	}

	store, err := catalog.NewStore(a.cfg.CatalogDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	return store, nil
}

// newHarvester builds a harvester from the resolved configuration. The
// returned function releases the catalog, if any.
func (a *app) newHarvester() (*harvest.Harvester, func(), error) {
	h := harvest.NewFromConfig(&a.cfg.Fetch, a.logger, &harvest.Config{
		Workers:      a.cfg.Workers,
		HeadingTags:  a.cfg.HeadingTags,
		ValidatePDFs: a.cfg.ValidatePDFs,
	})

	store, err := a.openCatalog()
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return h, func() {}, nil
	}

	h.SetRecorder(store)
	return h, func() { store.Close() }, nil
}
