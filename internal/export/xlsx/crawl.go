// Package xlsx exports crawl results as spreadsheets.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

// Sheet names in the exported workbook.
const (
	JobSheet   = "Job"
	ItemsSheet = "Items"
)

var itemHeaders = []any{
	"URL",
	"Status",
	"Content URL",
	"Raw Content URL",
	"Cleaned Content URL",
	"Markdown Content URL",
}

// WriteCrawl writes a workbook with a job summary sheet and one row per
// crawled item. The Content URL column follows the job's scrape type.
func WriteCrawl(w io.Writer, result webcrawlerapi.CrawlResult) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with Sheet1; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", JobSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	summary := [][]any{
		{"Job ID", result.ID},
		{"Status", string(result.Status)},
		{"URL", result.URL},
		{"Scrape Type", string(result.ScrapeType)},
		{"Items", len(result.Items)},
	}
	for i, row := range summary {
		if err := setRow(f, JobSheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := setRow(f, ItemsSheet, 1, itemHeaders); err != nil {
		return err
	}
	for i, item := range result.Items {
		row := []any{
			item.URL,
			item.Status,
			item.ContentURL(result.ScrapeType),
			item.RawContentURL,
			item.CleanedContentURL,
			item.MarkdownContentURL,
		}
		if err := setRow(f, ItemsSheet, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(JobSheet, "A", "A", 14)
	_ = f.SetColWidth(JobSheet, "B", "B", 60)
	_ = f.SetColWidth(ItemsSheet, "A", "A", 60)
	_ = f.SetColWidth(ItemsSheet, "C", "F", 48)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}
