package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/pevans/harvest"
	"github.com/pevans/harvest/fetcher"
	"github.com/spf13/cobra"
)

// fetchFlags are the network flags shared by crawl, pdfs and links. They
// only override the configuration when given explicitly.
type fetchFlags struct {
	delay         time.Duration
	timeout       time.Duration
	retries       int
	respectRobots bool
	userAgent     string
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.DurationVar(&f.delay, "delay", fetcher.DefaultDelay, "Minimum time between page fetches (HARVEST_DELAY)")
	flags.DurationVar(&f.timeout, "timeout", 0, "Per-request timeout (default 10s for pages, 15s for PDFs)")
	flags.IntVar(&f.retries, "retries", 0, "Retries after a transient fetch failure (HARVEST_RETRIES)")
	flags.BoolVar(&f.respectRobots, "respect-robots", false, "Skip URLs disallowed by robots.txt (HARVEST_RESPECT_ROBOTS)")
	flags.StringVar(&f.userAgent, "user-agent", "", "User-Agent header (HARVEST_USER_AGENT)")
}

func (f *fetchFlags) apply(cmd *cobra.Command, cfg *fetcher.Config) error {
	flags := cmd.Flags()

	if flags.Changed("delay") {
		cfg.Delay = f.delay
	}
	if flags.Changed("timeout") {
		if f.timeout <= 0 {
			return fmt.Errorf("--timeout must be positive")
		}
		cfg.PageTimeout = f.timeout
		cfg.DownloadTimeout = f.timeout
	}
	if flags.Changed("retries") {
		if f.retries < 0 {
			return fmt.Errorf("--retries must not be negative")
		}
		cfg.Retries = f.retries
	}
	if flags.Changed("respect-robots") {
		cfg.RespectRobots = f.respectRobots
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}

	return nil
}

// startProgress shows a spinner on stderr that follows the harvester's
// progress. The returned function stops it.
func startProgress(h *harvest.Harvester, label string, enabled bool) func() {
	if !enabled {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + label
	h.OnProgress(func(done, total int, url string) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" %s %d/%d %s", label, done, total, url)
		s.Unlock()
	})

	s.Start()
	return s.Stop
}
