package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/webcrawlerapi-go/internal/recorder"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

type scrapeOptions struct {
	scrapeType string
	maxPolls   int
	async      bool
}

// newScrapeCmd creates the 'scrape' subcommand for single pages.
func newScrapeCmd() *cobra.Command {
	var opts scrapeOptions
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape one page and wait for the content",
		Long: `Submits a scrape job for <url> and polls until the service reports done
or error, then prints the result as JSON. With --async only the job id is
printed; use 'scrape-status' to check on it later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a App) error {
				return runScrape(ctx, cmd, a, args[0], opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.scrapeType, "scrape-type", "", "content variant: html, cleaned or markdown")
	cmd.Flags().IntVar(&opts.maxPolls, "max-polls", 0, "override the configured poll budget")
	cmd.Flags().BoolVar(&opts.async, "async", false, "submit and print the job id without waiting")
	return cmd
}

func runScrape(ctx context.Context, cmd *cobra.Command, a App, target string, opts scrapeOptions) error {
	scrapeType, err := parseScrapeType(opts.scrapeType)
	if err != nil {
		return err
	}
	req := webcrawlerapi.ScrapeRequest{
		URL:        target,
		ScrapeType: scrapeType,
		MaxPolls:   opts.maxPolls,
	}

	if opts.async {
		id, err := a.GetClient().ScrapeAsync(ctx, req)
		if err != nil {
			return fmt.Errorf("scrape %s: %w", target, err)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
			return fmt.Errorf("write job id: %w", err)
		}
		return nil
	}

	result, err := a.GetClient().Scrape(ctx, req)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", target, err)
	}
	if err := printResult(cmd, result); err != nil {
		return err
	}
	return record(a, recorder.KindScrape, func(rec ResultRecorder) (recorder.Receipt, error) {
		return rec.RecordScrape(ctx, result, target)
	})
}
