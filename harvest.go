package harvest

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pevans/harvest/catalog"
	"github.com/pevans/harvest/corpus"
	"github.com/pevans/harvest/discovery"
	"github.com/pevans/harvest/fetcher"
)

// Re-export types used in results
type (
	PDFRecord = corpus.PDFRecord
	PDFLink   = discovery.PDFLink
)

// Fetcher is the network side of a harvest. *fetcher.Fetcher implements it.
type Fetcher interface {
	discovery.Getter
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
	Wait(ctx context.Context) error
}

// Recorder receives a running record of each harvest. *catalog.Store
// implements it.
type Recorder interface {
	StartRun(kind, seedURL string) (*catalog.Run, error)
	RecordPage(runID uuid.UUID, url string, chars int, fetchErr error) error
	RecordPDF(pdf catalog.PDF) error
	FinishRun(runID uuid.UUID, runErr error) error
}

// ProgressFunc is called after each URL of a run has been processed.
type ProgressFunc func(done, total int, url string)

// Config holds harvester settings.
type Config struct {
	// Number of pages fetched at once during a crawl
	Workers int
	// Elements whose text starts a new PDF section
	HeadingTags []string
	// Check that each downloaded PDF parses, discarding those that don't
	ValidatePDFs bool
}

// DefaultConfig returns a sequential crawl with h3 PDF sections.
func DefaultConfig() *Config {
	return &Config{
		Workers:     1,
		HeadingTags: []string{"h3"},
	}
}

// Harvester is the context of a single harvest run. It owns the fetcher,
// logger and optional recorder; crawl state such as the visited set lives
// only for the duration of a call, so one Harvester can run several
// independent crawls.
type Harvester struct {
	fetcher    Fetcher
	discoverer *discovery.Discoverer
	logger     *log.Logger
	config     *Config
	recorder   Recorder
	progress   ProgressFunc
}

// New creates a Harvester.
func New(f Fetcher, logger *log.Logger, config *Config) *Harvester {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Harvester{
		fetcher:    f,
		discoverer: discovery.New(f, logger, config.HeadingTags...),
		logger:     logger,
		config:     config,
	}
}

// NewFromConfig creates a Harvester with a new fetcher.
func NewFromConfig(fetchConfig *fetcher.Config, logger *log.Logger, config *Config) *Harvester {
	return New(fetcher.New(fetchConfig), logger, config)
}

// SetRecorder makes the harvester record runs, pages and PDFs as they
// happen.
func (h *Harvester) SetRecorder(r Recorder) {
	h.recorder = r
}

// OnProgress registers fn to be called as URLs are processed.
func (h *Harvester) OnProgress(fn ProgressFunc) {
	h.progress = fn
}

// Discoverer returns the link discoverer the harvester uses.
func (h *Harvester) Discoverer() *discovery.Discoverer {
	return h.discoverer
}

func (h *Harvester) reportProgress(done, total int, url string) {
	if h.progress != nil {
		h.progress(done, total, url)
	}
}

// startRun records a run start. Recorder failures are logged, never fatal.
func (h *Harvester) startRun(kind, seedURL string) uuid.UUID {
	if h.recorder == nil {
		return uuid.Nil
	}

	run, err := h.recorder.StartRun(kind, seedURL)
	if err != nil {
		h.logger.Error("Failed to record run start", "err", err)
		return uuid.Nil
	}

	h.logger.Debug("Recording run", "run_id", run.RunID)
	return run.RunID
}

func (h *Harvester) finishRun(runID uuid.UUID, runErr error) {
	if h.recorder == nil || runID == uuid.Nil {
		return
	}

	if err := h.recorder.FinishRun(runID, runErr); err != nil {
		h.logger.Error("Failed to record run finish", "run_id", runID, "err", err)
	}
}

func (h *Harvester) recordPage(runID uuid.UUID, url string, chars int, fetchErr error) {
	if h.recorder == nil || runID == uuid.Nil {
		return
	}

	if err := h.recorder.RecordPage(runID, url, chars, fetchErr); err != nil {
		h.logger.Error("Failed to record page", "url", url, "err", err)
	}
}

func (h *Harvester) recordPDF(pdf catalog.PDF) {
	if h.recorder == nil || pdf.RunID == uuid.Nil {
		return
	}

	if err := h.recorder.RecordPDF(pdf); err != nil {
		h.logger.Error("Failed to record PDF", "url", pdf.URL, "err", err)
	}
}

// visitedSet holds the URLs fetched during one crawl. It only grows.
type visitedSet struct {
	mu   sync.Mutex
	urls map[string]bool
}

func newVisitedSet() *visitedSet {
	return &visitedSet{urls: make(map[string]bool)}
}

// Add inserts url and reports whether it was not already present.
func (v *visitedSet) Add(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.urls[url] {
		return false
	}
	v.urls[url] = true
	return true
}

// Contains reports whether url has been visited.
func (v *visitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.urls[url]
}

// Len returns the number of visited URLs.
func (v *visitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.urls)
}
