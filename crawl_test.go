package harvest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/harvest/catalog"
	"github.com/pevans/harvest/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedPage = `<html><head><title>Forms</title><script>track()</script></head>
<body>
	<h1>Forms Library</h1>
	<a href="/travel">Travel</a>
	<a href="/payroll">Payroll</a>
	<a href="/travel">Travel again</a>
	<a href="/grants">Grants</a>
	<a href="https://elsewhere.example/forms">Partner</a>
</body></html>`

func crawlSite(t *testing.T) (*site, string) {
	t.Helper()
	s, server := newSite(t)
	s.pages["/"] = seedPage
	s.pages["/travel"] = "<body><p>Travel request form</p><style>p{}</style></body>"
	s.pages["/payroll"] = "<body><p>Payroll</p><p>calendar</p></body>"
	s.pages["/grants"] = "<body><noscript>enable js</noscript><p>Grant forms</p></body>"
	return s, server.URL + "/"
}

// TestCrawl_Frontier verifies the seed plus its same-domain links are
// crawled, each once, into one section per page
func TestCrawl_Frontier(t *testing.T) {
	s, seed := crawlSite(t)
	h := newTestHarvester(t, nil)

	result, err := h.Crawl(context.Background(), seed)
	require.NoError(t, err)

	base := strings.TrimSuffix(seed, "/")
	assert.Equal(t, []string{seed, base + "/travel", base + "/payroll", base + "/grants"}, result.Frontier)
	assert.Equal(t, 4, result.Visited)
	assert.Zero(t, result.Failures)
	assert.Equal(t, 4, result.Corpus.Sections())

	text := result.Corpus.String()
	assert.Equal(t, 4, strings.Count(text, "\n"+corpus.Delimiter+"\n"))
	assert.NotContains(t, text, "elsewhere.example")
	assert.NotContains(t, text, "track()")
	assert.NotContains(t, text, "p{}")
	assert.NotContains(t, text, "enable js")
	assert.Contains(t, text, "\n---\n"+base+"/travel\nTravel request form")
	assert.Contains(t, text, "\n---\n"+base+"/payroll\nPayroll calendar")

	for _, path := range []string{"/", "/travel", "/payroll", "/grants"} {
		assert.Equal(t, 1, s.hitCount(path), path)
	}
}

// TestCrawl_SeedFirst verifies the seed's section comes first
func TestCrawl_SeedFirst(t *testing.T) {
	_, seed := crawlSite(t)
	h := newTestHarvester(t, nil)

	result, err := h.Crawl(context.Background(), seed)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Corpus.String(), "\n\n---\n"+seed+"\nForms Forms Library Travel Payroll"))
}

// TestCrawl_Idempotent verifies two runs write byte-identical corpora
func TestCrawl_Idempotent(t *testing.T) {
	_, seed := crawlSite(t)
	dir := t.TempDir()

	var outputs [][]byte
	for i := range 2 {
		path := filepath.Join(dir, "corpus"+string(rune('a'+i))+".txt")
		_, err := newTestHarvester(t, nil).CrawlToFile(context.Background(), seed, path)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}

	assert.Equal(t, outputs[0], outputs[1])
}

// TestCrawl_WorkersKeepOrder verifies a worker pool produces the same corpus
// as a sequential crawl
func TestCrawl_WorkersKeepOrder(t *testing.T) {
	_, seed := crawlSite(t)

	sequential, err := newTestHarvester(t, &Config{Workers: 1}).Crawl(context.Background(), seed)
	require.NoError(t, err)

	parallel, err := newTestHarvester(t, &Config{Workers: 4}).Crawl(context.Background(), seed)
	require.NoError(t, err)

	assert.Equal(t, sequential.Corpus.String(), parallel.Corpus.String())
	assert.Equal(t, sequential.Frontier, parallel.Frontier)
}

// TestCrawl_PageFailures verifies failed pages are skipped without stopping
// the crawl
func TestCrawl_PageFailures(t *testing.T) {
	s, server := newSite(t)
	s.pages["/"] = `<body><a href="/ok">ok</a><a href="/data">data</a><a href="/gone">gone</a></body>`
	s.pages["/ok"] = "<body>fine</body>"
	s.raw["/data"] = rawResponse{status: 200, contentType: "application/json", body: `{"a":1}`}
	seed := server.URL + "/"

	result, err := newTestHarvester(t, nil).Crawl(context.Background(), seed)
	require.NoError(t, err)

	assert.Len(t, result.Frontier, 4)
	assert.Equal(t, 4, result.Visited)
	// neither the JSON page nor the plain text 404 has an HTML body
	assert.Equal(t, 2, result.Failures)
	assert.NotContains(t, result.Corpus.String(), "/data\n")
	assert.NotContains(t, result.Corpus.String(), "/gone\n")
	assert.Equal(t, 2, result.Corpus.Sections())
}

// TestCrawl_SeedUnreachable verifies a dead seed yields an empty corpus
func TestCrawl_SeedUnreachable(t *testing.T) {
	s, server := newSite(t)
	s.raw["/"] = rawResponse{status: 200, contentType: "image/png", body: "png"}

	result, err := newTestHarvester(t, nil).Crawl(context.Background(), server.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, []string{server.URL + "/"}, result.Frontier)
	assert.Equal(t, 1, result.Failures)
	assert.Zero(t, result.Corpus.Sections())
}

// TestCrawl_InvalidSeed verifies relative seeds are rejected
func TestCrawl_InvalidSeed(t *testing.T) {
	_, err := newTestHarvester(t, nil).Crawl(context.Background(), "/forms")

	assert.ErrorContains(t, err, "invalid seed URL")
}

// TestCrawl_Cancelled verifies a cancelled context fails the crawl
func TestCrawl_Cancelled(t *testing.T) {
	_, seed := crawlSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "corpus.txt")
	_, err := newTestHarvester(t, nil).CrawlToFile(ctx, seed, path)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

// TestCrawl_Progress verifies progress is reported once per URL
func TestCrawl_Progress(t *testing.T) {
	_, seed := crawlSite(t)
	h := newTestHarvester(t, &Config{Workers: 2})

	var mu sync.Mutex
	var seen []string
	h.OnProgress(func(done, total int, url string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		seen = append(seen, url)
	})

	_, err := h.Crawl(context.Background(), seed)
	require.NoError(t, err)

	assert.Len(t, seen, 4)
}

// TestCrawl_Recorder verifies pages and the run outcome are cataloged
func TestCrawl_Recorder(t *testing.T) {
	_, seed := crawlSite(t)
	store := newTestCatalog(t)
	h := newTestHarvester(t, nil)
	h.SetRecorder(store)

	result, err := h.CrawlToFile(context.Background(), seed, filepath.Join(t.TempDir(), "corpus.txt"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.RunID)

	run, err := store.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, catalog.KindCrawl, run.Kind)
	assert.Equal(t, catalog.StatusFinished, run.Status)
	assert.Equal(t, 4, run.Pages)

	pages, err := store.ListPages(result.RunID)
	require.NoError(t, err)
	assert.Len(t, pages, 4)
}

// TestCrawlToFile_WriteFailure verifies a failed write fails the run
func TestCrawlToFile_WriteFailure(t *testing.T) {
	_, seed := crawlSite(t)
	store := newTestCatalog(t)
	h := newTestHarvester(t, nil)
	h.SetRecorder(store)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := h.CrawlToFile(context.Background(), seed, filepath.Join(blocker, "corpus.txt"))
	require.Error(t, err)

	runs, err := store.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, catalog.StatusFailed, runs[0].Status)
}

// TestPageText verifies a single page can be read outside a crawl
func TestPageText(t *testing.T) {
	_, seed := crawlSite(t)

	page, err := newTestHarvester(t, nil).PageText(context.Background(), seed+"travel")
	require.NoError(t, err)

	assert.Equal(t, "Travel request form", page.Text)
}

// TestCrawl_ErrorStatusKept verifies an HTML error page still contributes
// its text
func TestCrawl_ErrorStatusKept(t *testing.T) {
	s, server := newSite(t)
	s.pages["/"] = `<body><a href="/old">old</a></body>`
	s.raw["/old"] = rawResponse{status: 410, contentType: "text/html", body: "<body>This form has moved</body>"}

	result, err := newTestHarvester(t, nil).Crawl(context.Background(), server.URL+"/")
	require.NoError(t, err)

	assert.Zero(t, result.Failures)
	assert.Contains(t, result.Corpus.String(), "/old\nThis form has moved")
}

// TestCrawl_SeedWithoutBodyTag verifies a seed lacking <body> keeps its text
// but contributes no links
func TestCrawl_SeedWithoutBodyTag(t *testing.T) {
	s, server := newSite(t)
	s.pages["/"] = `<html><head><title>Index</title></head><a href="/x">x</a></html>`
	s.pages["/x"] = "<body>never fetched</body>"

	result, err := newTestHarvester(t, nil).Crawl(context.Background(), server.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, []string{server.URL + "/"}, result.Frontier)
	assert.Zero(t, s.hitCount("/x"))
	assert.Contains(t, result.Corpus.String(), "Index x")
}

// TestCrawl_WaitsBeforeEveryPage verifies every page fetch goes through the
// politeness limiter
func TestCrawl_WaitsBeforeEveryPage(t *testing.T) {
	_, seed := crawlSite(t)
	f := newCountingFetcher(0)

	result, err := New(f, testLogger(), &Config{Workers: 2}).Crawl(context.Background(), seed)
	require.NoError(t, err)

	require.Len(t, result.Frontier, 4)
	assert.Equal(t, int64(4), f.waits.Load())
	assert.Equal(t, int64(4), f.gets.Load())
}

// TestCrawl_Delay verifies consecutive page fetches are spaced by the delay
func TestCrawl_Delay(t *testing.T) {
	_, seed := crawlSite(t)
	delay := 60 * time.Millisecond

	start := time.Now()
	_, err := New(newCountingFetcher(delay), testLogger(), nil).Crawl(context.Background(), seed)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 3*delay)
}
