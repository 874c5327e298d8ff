package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLinksCommand(a *app) *cobra.Command {
	var (
		pdf    bool
		format string
		fetch  fetchFlags
	)

	cmd := &cobra.Command{
		Use:   "links <url>",
		Short: "Print the same-domain links, or PDF links, found on a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q: use text or json", format)
			}
			if err := fetch.apply(cmd, &a.cfg.Fetch); err != nil {
				return err
			}

			h, closeCatalog, err := a.newHarvester()
			if err != nil {
				return err
			}
			defer closeCatalog()

			d := h.Discoverer()
			ctx := cmd.Context()

			if !pdf {
				links := d.Links(ctx, args[0])
				if format == "json" {
					return writeJSON(links)
				}
				for _, link := range links {
					fmt.Println(link)
				}
				return nil
			}

			links, err := d.PDFLinks(ctx, args[0])
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(links)
			}
			for _, link := range links {
				fmt.Printf("%s\t%s\t%s\n", link.Section, link.FileName, link.URL)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&pdf, "pdf", false, "List PDF links with their sections and file names")
	flags.StringVar(&format, "format", "text", "Output format: text or json")
	fetch.register(cmd)

	return cmd
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
