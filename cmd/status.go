package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newScrapeStatusCmd checks a scrape job once.
func newScrapeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape-status <id>",
		Short: "Print the current state of a scrape job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a App) error {
				result, err := a.GetClient().GetScrape(ctx, args[0])
				if err != nil {
					return fmt.Errorf("scrape status %s: %w", args[0], err)
				}
				return printResult(cmd, result)
			})
		},
	}
}

// newJobCmd checks a crawl job once.
func newJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Print the current state of a crawl job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a App) error {
				result, err := a.GetClient().GetJob(ctx, args[0])
				if err != nil {
					return fmt.Errorf("job %s: %w", args[0], err)
				}
				return printResult(cmd, result)
			})
		},
	}
}
