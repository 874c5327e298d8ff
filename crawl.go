package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/pevans/harvest/catalog"
	"github.com/pevans/harvest/corpus"
	"github.com/pevans/harvest/discovery"
	"github.com/pevans/harvest/extract"
	"github.com/pevans/harvest/fetcher"
	"golang.org/x/sync/errgroup"
)

// Page is the visible text of one fetched URL.
type Page struct {
	URL  string
	Text string
}

// CrawlResult summarizes a text crawl.
type CrawlResult struct {
	// Catalog run ID; uuid.Nil when no recorder is set
	RunID uuid.UUID
	// Seed URL followed by the same-domain links found on it
	Frontier []string
	// Number of distinct URLs fetched
	Visited int
	// Number of URLs that could not be fetched or parsed
	Failures int
	// The accumulated corpus, one section per page with text
	Corpus *corpus.Buffer
}

// Crawl fetches the seed page, builds the frontier from its same-domain
// links and extracts the visible text of every frontier URL into a corpus
// buffer. Each URL is fetched at most once. Per-URL failures are logged and
// leave that URL without content; only an invalid seed or a cancelled
// context fail the crawl.
func (h *Harvester) Crawl(ctx context.Context, seedURL string) (*CrawlResult, error) {
	if !discovery.IsValidURL(seedURL) {
		return nil, fmt.Errorf("invalid seed URL: %q", seedURL)
	}

	runID := h.startRun(catalog.KindCrawl, seedURL)
	result, err := h.crawl(ctx, runID, seedURL)
	h.finishRun(runID, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CrawlToFile runs Crawl and writes the corpus to path. The file is written
// once, after every page has been processed; a write failure fails the run.
func (h *Harvester) CrawlToFile(ctx context.Context, seedURL, path string) (*CrawlResult, error) {
	if !discovery.IsValidURL(seedURL) {
		return nil, fmt.Errorf("invalid seed URL: %q", seedURL)
	}

	runID := h.startRun(catalog.KindCrawl, seedURL)
	result, err := h.crawl(ctx, runID, seedURL)
	if err == nil {
		err = result.Corpus.WriteFile(path)
	}
	h.finishRun(runID, err)
	if err != nil {
		return nil, err
	}

	h.logger.Info("Wrote corpus", "file", path, "sections", result.Corpus.Sections(), "bytes", result.Corpus.Len())
	return result, nil
}

func (h *Harvester) crawl(ctx context.Context, runID uuid.UUID, seedURL string) (*CrawlResult, error) {
	h.logger.Info("Scanning for links in <body>", "url", seedURL)

	// The seed document serves both link discovery and its own text, so the
	// seed is fetched once.
	seedResp, seedDoc, seedErr := h.fetchDocument(ctx, seedURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A page without a <body> tag still has text but offers no links.
	var links []string
	switch {
	case seedErr != nil:
		h.logFetchFailure(seedURL, seedErr)
	case !discovery.HasBodyTag(seedResp.Body):
		h.logFetchFailure(seedURL, discovery.ErrNoBody)
	default:
		links = discovery.LinksFromDocument(seedDoc, seedURL)
	}

	frontier := buildFrontier(seedURL, links)
	h.logger.Info("Found pages to visit", "count", len(frontier))

	visited := newVisitedSet()
	texts := make([]string, len(frontier))
	var done, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Workers)

	for i, pageURL := range frontier {
		if !visited.Add(pageURL) {
			continue
		}

		g.Go(func() error {
			var (
				text string
				err  error
			)
			if i == 0 {
				text, err = seedText(seedDoc, seedErr)
			} else {
				text, err = h.pageText(gctx, pageURL)
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if err != nil {
				failures.Add(1)
				if i > 0 {
					h.logFetchFailure(pageURL, err)
				}
			}
			h.recordPage(runID, pageURL, len(text), err)

			texts[i] = text
			h.reportProgress(int(done.Add(1)), len(frontier), pageURL)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	buf := &corpus.Buffer{}
	for i, pageURL := range frontier {
		buf.Add(pageURL, texts[i])
	}

	return &CrawlResult{
		RunID:    runID,
		Frontier: frontier,
		Visited:  visited.Len(),
		Failures: int(failures.Load()),
		Corpus:   buf,
	}, nil
}

// buildFrontier returns the seed followed by links, without duplicates.
func buildFrontier(seedURL string, links []string) []string {
	frontier := []string{seedURL}
	seen := map[string]bool{seedURL: true}

	for _, link := range links {
		if seen[link] {
			continue
		}
		seen[link] = true
		frontier = append(frontier, link)
	}

	return frontier
}

// fetchDocument waits out the politeness delay, fetches a page and parses
// it.
func (h *Harvester) fetchDocument(ctx context.Context, pageURL string) (*fetcher.Response, *goquery.Document, error) {
	if err := h.fetcher.Wait(ctx); err != nil {
		return nil, nil, err
	}

	resp, err := h.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn("Unexpected status", "url", pageURL, "status", resp.StatusCode)
	}

	doc, err := discovery.ParseResponse(resp)
	if err != nil {
		return nil, nil, err
	}

	return resp, doc, nil
}

// pageText fetches a page and returns its visible text.
func (h *Harvester) pageText(ctx context.Context, pageURL string) (string, error) {
	_, doc, err := h.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", err
	}

	return extract.DocumentText(doc), nil
}

func seedText(doc *goquery.Document, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return extract.DocumentText(doc), nil
}

func (h *Harvester) logFetchFailure(pageURL string, err error) {
	if errors.Is(err, discovery.ErrNoBody) {
		h.logger.Warn("No <body> tag found", "url", pageURL, "err", err)
		return
	}
	h.logger.Error("Failed to get text", "url", pageURL, "err", err)
}

// PageText fetches a single page and returns it with its visible text,
// outside of any crawl.
func (h *Harvester) PageText(ctx context.Context, pageURL string) (*Page, error) {
	text, err := h.pageText(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return &Page{URL: pageURL, Text: text}, nil
}
