// Package cmd defines and implements the CLI commands for the webcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/webcrawlerapi-go/internal/export/xlsx"
	"github.com/JakeFAU/webcrawlerapi-go/internal/recorder"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

type crawlOptions struct {
	scrapeType string
	itemsLimit int
	maxPolls   int
	xlsxPath   string
}

// newCrawlCmd creates the 'crawl' subcommand, which submits a multi-page
// crawl and waits for it to finish.
func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and wait for the job to finish",
		Long: `Submits a crawl job starting at <url>, polls its status using the delay
the service recommends and prints the final job, including every crawled
item, as JSON. When the poll budget runs out the latest state is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a App) error {
				return runCrawl(ctx, cmd, a, args[0], opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.scrapeType, "scrape-type", "", "content variant: html, cleaned or markdown")
	cmd.Flags().IntVar(&opts.itemsLimit, "items-limit", 10, "maximum number of pages to crawl")
	cmd.Flags().IntVar(&opts.maxPolls, "max-polls", 0, "override the configured poll budget")
	cmd.Flags().StringVar(&opts.xlsxPath, "xlsx", "", "also write the crawled items to this spreadsheet")
	return cmd
}

func runCrawl(ctx context.Context, cmd *cobra.Command, a App, target string, opts crawlOptions) error {
	scrapeType, err := parseScrapeType(opts.scrapeType)
	if err != nil {
		return err
	}
	if opts.itemsLimit <= 0 {
		return fmt.Errorf("--items-limit must be > 0")
	}

	result, err := a.GetClient().Crawl(ctx, webcrawlerapi.CrawlRequest{
		URL:        target,
		ScrapeType: scrapeType,
		ItemsLimit: opts.itemsLimit,
		MaxPolls:   opts.maxPolls,
	})
	if err != nil {
		return fmt.Errorf("crawl %s: %w", target, err)
	}
	if err := printResult(cmd, result); err != nil {
		return err
	}
	if opts.xlsxPath != "" {
		if err := exportSpreadsheet(opts.xlsxPath, result); err != nil {
			return err
		}
	}
	return record(a, recorder.KindCrawl, func(rec ResultRecorder) (recorder.Receipt, error) {
		return rec.RecordCrawl(ctx, result)
	})
}

func exportSpreadsheet(path string, result webcrawlerapi.CrawlResult) (err error) {
	f, err := os.Create(path) // #nosec G304 -- path comes from the operator's flag
	if err != nil {
		return fmt.Errorf("create spreadsheet: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return xlsx.WriteCrawl(f, result)
}
