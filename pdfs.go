package harvest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pevans/harvest/catalog"
	"github.com/pevans/harvest/corpus"
	"github.com/pevans/harvest/discovery"
	"github.com/pevans/harvest/extract"
)

// PDFResult summarizes a PDF harvest.
type PDFResult struct {
	// Catalog run ID; uuid.Nil when no recorder is set
	RunID uuid.UUID
	// Every PDF link found on the listing page, in document order
	Links []PDFLink
	// One record per successful download, in discovery order
	Records []PDFRecord
	// Number of links that could not be downloaded
	Failures int
}

// HarvestPDFs finds the PDF links on a listing page and downloads each into
// store, inferring a meeting date for every document. Downloads run one after
// another without the page crawl's politeness delay. A failed download is
// logged and skipped; only a failed listing fetch or a cancelled context fail
// the harvest.
func (h *Harvester) HarvestPDFs(ctx context.Context, listingURL string, store *corpus.PDFStore) (*PDFResult, error) {
	if !discovery.IsValidURL(listingURL) {
		return nil, fmt.Errorf("invalid listing URL: %q", listingURL)
	}

	runID := h.startRun(catalog.KindPDFs, listingURL)
	result, err := h.harvestPDFs(ctx, runID, listingURL, store)
	h.finishRun(runID, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// HarvestPDFsToFile runs HarvestPDFs and writes the metadata table to
// metadataPath, replacing any previous table.
func (h *Harvester) HarvestPDFsToFile(ctx context.Context, listingURL string, store *corpus.PDFStore, metadataPath string) (*PDFResult, error) {
	if !discovery.IsValidURL(listingURL) {
		return nil, fmt.Errorf("invalid listing URL: %q", listingURL)
	}

	runID := h.startRun(catalog.KindPDFs, listingURL)
	result, err := h.harvestPDFs(ctx, runID, listingURL, store)
	if err == nil {
		err = corpus.WriteMetadata(metadataPath, result.Records)
	}
	h.finishRun(runID, err)
	if err != nil {
		return nil, err
	}

	h.logger.Info("Saved metadata", "file", metadataPath, "pdfs", len(result.Records), "failures", result.Failures)
	return result, nil
}

func (h *Harvester) harvestPDFs(ctx context.Context, runID uuid.UUID, listingURL string, store *corpus.PDFStore) (*PDFResult, error) {
	links, err := h.discoverer.PDFLinks(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing page: %w", err)
	}
	h.logger.Info("Found PDF links", "url", listingURL, "count", len(links))

	result := &PDFResult{
		RunID: runID,
		Links: links,
	}

	for i, link := range links {
		record, err := h.downloadPDF(ctx, runID, link, store)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if err != nil {
			h.logger.Error("Failed to download", "url", link.URL, "file", link.FileName, "err", err)
			result.Failures++
		} else {
			result.Records = append(result.Records, *record)
		}

		h.reportProgress(i+1, len(links), link.URL)
	}

	return result, nil
}

// downloadPDF saves one document and builds its record.
func (h *Harvester) downloadPDF(ctx context.Context, runID uuid.UUID, link PDFLink, store *corpus.PDFStore) (*PDFRecord, error) {
	h.logger.Info("Downloading", "url", link.URL, "file", link.FileName)

	entry := catalog.PDF{
		RunID:    runID,
		URL:      link.URL,
		FileName: link.FileName,
		Section:  link.Section,
		Title:    link.Text,
	}

	var size int64
	path, err := store.Save(link.FileName, func(w io.Writer) error {
		n, err := h.fetcher.Download(ctx, link.URL, w)
		size = n
		return err
	})
	if err != nil {
		h.recordPDFFailure(entry, err)
		return nil, err
	}
	entry.Bytes = size

	if h.config.ValidatePDFs {
		pages, err := corpus.InspectPDF(path)
		if err != nil {
			if removeErr := store.Remove(link.FileName); removeErr != nil {
				h.logger.Warn("Failed to remove invalid PDF", "file", path, "err", removeErr)
			}
			h.recordPDFFailure(entry, err)
			return nil, err
		}
		entry.PageCount = pages
	}

	record := &PDFRecord{
		FileName: link.FileName,
		URL:      link.URL,
		Section:  link.Section,
		Title:    link.Text,
		Date:     extract.InferDate(link.Text + " " + link.FileName),
	}

	entry.Date = record.Date
	h.recordPDF(entry)

	return record, nil
}

func (h *Harvester) recordPDFFailure(entry catalog.PDF, err error) {
	msg := err.Error()
	entry.Error = &msg
	entry.Date = extract.UnknownDate
	h.recordPDF(entry)
}
