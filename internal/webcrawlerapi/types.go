package webcrawlerapi

import "fmt"

// JobStatus is the lifecycle state reported by the service.
type JobStatus string

// Status values returned by the service. Any other value is treated as
// non-terminal.
const (
	JobStatusNew        JobStatus = "new"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ScrapeType selects which content variant the service produces.
type ScrapeType string

// Supported scrape types. The empty value lets the service pick its default.
const (
	ScrapeTypeHTML     ScrapeType = "html"
	ScrapeTypeCleaned  ScrapeType = "cleaned"
	ScrapeTypeMarkdown ScrapeType = "markdown"
)

// Valid reports whether t is empty or one of the supported scrape types.
func (t ScrapeType) Valid() bool {
	switch t {
	case "", ScrapeTypeHTML, ScrapeTypeCleaned, ScrapeTypeMarkdown:
		return true
	default:
		return false
	}
}

// CrawlRequest describes a multi-page crawl job.
type CrawlRequest struct {
	URL        string
	ScrapeType ScrapeType
	ItemsLimit int
	// MaxPolls overrides the client's poll budget when positive.
	MaxPolls int
}

// ScrapeRequest describes a single-page scrape job.
type ScrapeRequest struct {
	URL        string
	ScrapeType ScrapeType
	// MaxPolls overrides the client's poll budget when positive.
	MaxPolls int
}

// CrawlResult is the state of a crawl job as of the latest poll.
type CrawlResult struct {
	ID                     string      `json:"id" yaml:"id"`
	Status                 JobStatus   `json:"status" yaml:"status"`
	URL                    string      `json:"url" yaml:"url"`
	ScrapeType             ScrapeType  `json:"scrape_type" yaml:"scrape_type"`
	RecommendedPullDelayMs int         `json:"recommended_pull_delay_ms" yaml:"recommended_pull_delay_ms"`
	Items                  []CrawlItem `json:"job_items" yaml:"job_items"`
}

func (r CrawlResult) String() string {
	return fmt.Sprintf("CrawlResult{id=%q, status=%q, items=%d}", r.ID, r.Status, len(r.Items))
}

// CrawlItem is one page visited by a crawl job.
type CrawlItem struct {
	URL                string `json:"url" yaml:"url"`
	Status             string `json:"status" yaml:"status"`
	RawContentURL      string `json:"raw_content_url" yaml:"raw_content_url"`
	CleanedContentURL  string `json:"cleaned_content_url" yaml:"cleaned_content_url"`
	MarkdownContentURL string `json:"markdown_content_url" yaml:"markdown_content_url"`
}

// ContentURL returns the stored-content link for the given scrape type, or ""
// when the type is not one of the supported variants.
func (i CrawlItem) ContentURL(scrapeType ScrapeType) string {
	switch scrapeType {
	case ScrapeTypeHTML:
		return i.RawContentURL
	case ScrapeTypeCleaned:
		return i.CleanedContentURL
	case ScrapeTypeMarkdown:
		return i.MarkdownContentURL
	default:
		return ""
	}
}

// ScrapeResult is the state of a scrape job as of the latest poll.
type ScrapeResult struct {
	ID             string    `json:"id,omitempty" yaml:"id,omitempty"`
	Status         JobStatus `json:"status" yaml:"status"`
	Content        string    `json:"content,omitempty" yaml:"content,omitempty"`
	HTML           string    `json:"html,omitempty" yaml:"html,omitempty"`
	Markdown       string    `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Cleaned        string    `json:"cleaned,omitempty" yaml:"cleaned,omitempty"`
	URL            string    `json:"url,omitempty" yaml:"url,omitempty"`
	PageStatusCode int       `json:"page_status_code" yaml:"page_status_code"`
}

func (r ScrapeResult) String() string {
	return fmt.Sprintf("ScrapeResult{status=%q, url=%q}", r.Status, r.URL)
}

// isCrawlTerminal reports whether a crawl job will not change state again.
func isCrawlTerminal(status JobStatus) bool {
	switch status {
	case JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// isScrapeTerminal is isCrawlTerminal without cancelled: scrape jobs are never
// cancelled by the service.
func isScrapeTerminal(status JobStatus) bool {
	return status == JobStatusDone || status == JobStatusError
}
