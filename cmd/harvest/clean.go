package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pevans/harvest/textfilter"
	"github.com/spf13/cobra"
)

func newCleanCommand(a *app) *cobra.Command {
	var domains []string

	cmd := &cobra.Command{
		Use:   "clean <input> <output>",
		Short: "Remove social media URLs from a corpus file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			filter := textfilter.NewURLFilter(append(a.cfg.SocialDomains, domains...))
			cleaned := strings.TrimSpace(filter.Apply(string(data)))

			if err := os.WriteFile(args[1], []byte(cleaned), 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			a.logger.Info("Cleaned corpus", "input", args[0], "output", args[1],
				"before", len(data), "after", len(cleaned))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&domains, "domain", nil, "Additional domain to strip (repeatable)")

	return cmd
}
