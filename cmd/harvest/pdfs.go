package main

import (
	"fmt"

	"github.com/pevans/harvest/corpus"
	"github.com/spf13/cobra"
)

func newPDFsCommand(a *app) *cobra.Command {
	var (
		listingURL  string
		dir         string
		metadata    string
		headingTags []string
		validate    bool
		noProgress  bool
		fetch       fetchFlags
	)

	cmd := &cobra.Command{
		Use:   "pdfs [listing-url]",
		Short: "Download the PDFs linked from a listing page with a metadata table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				listingURL = args[0]
			}
			if listingURL != "" {
				a.cfg.ListingURL = listingURL
			}
			if dir != "" {
				a.cfg.PDFDir = dir
			}
			if metadata != "" {
				a.cfg.MetadataPath = metadata
			}
			if len(headingTags) > 0 {
				a.cfg.HeadingTags = headingTags
			}
			if cmd.Flags().Changed("validate") {
				a.cfg.ValidatePDFs = validate
			}
			if err := fetch.apply(cmd, &a.cfg.Fetch); err != nil {
				return err
			}

			store, err := corpus.NewPDFStore(a.cfg.PDFDir)
			if err != nil {
				return err
			}

			h, closeCatalog, err := a.newHarvester()
			if err != nil {
				return err
			}
			defer closeCatalog()

			stop := startProgress(h, "downloading", !noProgress)
			result, err := h.HarvestPDFsToFile(cmd.Context(), a.cfg.ListingURL, store, a.cfg.MetadataPath)
			stop()
			if err != nil {
				a.logger.Error("PDF harvest failed", "url", a.cfg.ListingURL, "err", err)
				return err
			}

			fmt.Printf("Downloaded %d of %d PDFs to %s (%d failed); metadata in %s\n",
				len(result.Records), len(result.Links), store.Dir(), result.Failures, a.cfg.MetadataPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&listingURL, "listing", "", "Listing page URL (HARVEST_LISTING_URL)")
	flags.StringVarP(&dir, "dir", "d", "", "Directory for downloaded PDFs (HARVEST_PDF_DIR)")
	flags.StringVarP(&metadata, "metadata", "m", "", "Metadata CSV to write (HARVEST_METADATA)")
	flags.StringSliceVar(&headingTags, "heading", nil, "Elements that start a new section (default h3)")
	flags.BoolVar(&validate, "validate", false, "Discard downloads that do not parse as PDF")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the progress spinner")
	fetch.register(cmd)

	return cmd
}
