package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/harvest/catalog"
	"github.com/spf13/cobra"
)

func newRunsCommand(a *app) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or the pages and PDFs of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q: use table or json", format)
			}

			store, err := a.openCatalog()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no catalog configured: use --catalog or HARVEST_CATALOG_DSN")
			}
			defer store.Close()

			if len(args) == 0 {
				runs, err := store.ListRuns(limit)
				if err != nil {
					return err
				}
				if format == "json" {
					return writeJSON(runs)
				}
				printRunsTable(runs)
				return nil
			}

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}
			return showRun(store, runID, format)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	flags.StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func showRun(store *catalog.Store, runID uuid.UUID, format string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	switch run.Kind {
	case catalog.KindCrawl:
		pages, err := store.ListPages(runID)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(pages)
		}
		printPagesTable(pages)
	case catalog.KindPDFs:
		pdfs, err := store.ListPDFs(runID)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(pdfs)
		}
		printPDFsTable(pdfs)
	}

	return nil
}

func printRunsTable(runs []catalog.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run ID", "Kind", "Status", "Started", "Pages", "PDFs", "Failures", "Seed URL"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.RunID.String(),
			run.Kind,
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Pages,
			run.PDFs,
			run.Failures,
			truncate(run.SeedURL, 60),
		})
	}
	t.Render()
}

func printPagesTable(pages []catalog.Page) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Chars", "Fetched", "Error"})
	for _, page := range pages {
		t.AppendRow(table.Row{
			truncate(page.URL, 70),
			page.Chars,
			page.FetchedAt.Local().Format(time.TimeOnly),
			truncate(deref(page.Error), 50),
		})
	}
	t.AppendFooter(table.Row{"Total", len(pages)})
	t.Render()
}

func printPDFsTable(pdfs []catalog.PDF) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Section", "Date", "Bytes", "Pages", "Error"})
	for _, pdf := range pdfs {
		t.AppendRow(table.Row{
			truncate(pdf.FileName, 60),
			pdf.Section,
			pdf.Date,
			pdf.Bytes,
			pdf.PageCount,
			truncate(deref(pdf.Error), 40),
		})
	}
	t.AppendFooter(table.Row{"Total", len(pdfs)})
	t.Render()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
