package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCrawlCommand(a *app) *cobra.Command {
	var (
		seedURL    string
		output     string
		workers    int
		noProgress bool
		fetch      fetchFlags
	)

	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Build a text corpus from a seed page and its same-domain links",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				seedURL = args[0]
			}
			if seedURL != "" {
				a.cfg.SeedURL = seedURL
			}
			if output != "" {
				a.cfg.CorpusPath = output
			}
			if cmd.Flags().Changed("workers") {
				if workers < 1 {
					return fmt.Errorf("--workers must be at least 1")
				}
				a.cfg.Workers = workers
			}
			if err := fetch.apply(cmd, &a.cfg.Fetch); err != nil {
				return err
			}

			h, closeCatalog, err := a.newHarvester()
			if err != nil {
				return err
			}
			defer closeCatalog()

			stop := startProgress(h, "crawling", !noProgress)
			result, err := h.CrawlToFile(cmd.Context(), a.cfg.SeedURL, a.cfg.CorpusPath)
			stop()
			if err != nil {
				a.logger.Error("Crawl failed", "url", a.cfg.SeedURL, "err", err)
				return err
			}

			fmt.Printf("Saved %d of %d pages to %s (%d failed)\n",
				result.Corpus.Sections(), len(result.Frontier), a.cfg.CorpusPath, result.Failures)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&seedURL, "seed", "", "Seed URL (HARVEST_SEED_URL)")
	flags.StringVarP(&output, "output", "o", "", "Corpus file to write (HARVEST_OUTPUT)")
	flags.IntVarP(&workers, "workers", "w", 1, "Pages fetched at once (HARVEST_WORKERS)")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the progress spinner")
	fetch.register(cmd)

	return cmd
}
