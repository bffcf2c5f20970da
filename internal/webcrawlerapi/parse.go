package webcrawlerapi

import (
	"time"

	"github.com/JakeFAU/webcrawlerapi-go/internal/jsonscan"
)

func field(doc, key string) string {
	v, _ := jsonscan.Value(doc, key)
	return v
}

func parseCrawlResult(doc string) CrawlResult {
	result := CrawlResult{
		ID:                     field(doc, "id"),
		Status:                 JobStatus(field(doc, "status")),
		URL:                    field(doc, "url"),
		ScrapeType:             ScrapeType(field(doc, "scrape_type")),
		RecommendedPullDelayMs: jsonscan.Int(doc, "recommended_pull_delay_ms"),
	}
	objects := jsonscan.Objects(doc, "job_items")
	result.Items = make([]CrawlItem, 0, len(objects))
	for _, obj := range objects {
		result.Items = append(result.Items, CrawlItem{
			URL:                field(obj, "url"),
			Status:             field(obj, "status"),
			RawContentURL:      field(obj, "raw_content_url"),
			CleanedContentURL:  field(obj, "cleaned_content_url"),
			MarkdownContentURL: field(obj, "markdown_content_url"),
		})
	}
	return result
}

func (r CrawlResult) pullDelay() time.Duration {
	return time.Duration(r.RecommendedPullDelayMs) * time.Millisecond
}

func parseScrapeResult(doc string) ScrapeResult {
	return ScrapeResult{
		Status:         JobStatus(field(doc, "status")),
		Content:        field(doc, "content"),
		HTML:           field(doc, "html"),
		Markdown:       field(doc, "markdown"),
		Cleaned:        field(doc, "cleaned"),
		URL:            field(doc, "url"),
		PageStatusCode: jsonscan.Int(doc, "page_status_code"),
	}
}
