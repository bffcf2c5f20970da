package webcrawlerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawlerapi-go/internal/jsonscan"
)

const kindCrawl = "crawl"

type crawlBody struct {
	URL        string     `json:"url"`
	ScrapeType ScrapeType `json:"scrape_type,omitempty"`
	ItemsLimit int        `json:"items_limit"`
}

// Crawl submits a crawl job and blocks until it finishes or the poll budget
// is spent. The returned result may be non-terminal in the latter case.
func (c *Client) Crawl(ctx context.Context, req CrawlRequest) (CrawlResult, error) {
	jobID, err := c.StartCrawl(ctx, req)
	if err != nil {
		return CrawlResult{}, err
	}

	return poll(ctx, c, pollLoop[CrawlResult]{
		kind:     kindCrawl,
		jobID:    jobID,
		maxPolls: c.maxPolls(req.MaxPolls),
		check: func(ctx context.Context) (CrawlResult, JobStatus, time.Duration, error) {
			result, err := c.GetJob(ctx, jobID)
			if err != nil {
				return CrawlResult{}, "", 0, err
			}
			return result, result.Status, result.pullDelay(), nil
		},
		terminal: isCrawlTerminal,
		delay:    c.hintOrDefault,
	})
}

// StartCrawl submits a crawl job and returns its ID without waiting.
func (c *Client) StartCrawl(ctx context.Context, req CrawlRequest) (string, error) {
	body, err := json.Marshal(crawlBody{
		URL:        req.URL,
		ScrapeType: req.ScrapeType,
		ItemsLimit: req.ItemsLimit,
	})
	if err != nil {
		return "", fmt.Errorf("marshal crawl request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/v1/crawl", string(body))
	if err != nil {
		return "", err
	}
	jobID, _ := jsonscan.Value(resp, "id")
	if jobID == "" {
		return "", missingIDError("job")
	}
	c.logger.Info("crawl submitted", zap.String("job_id", jobID), zap.String("url", req.URL))
	return jobID, nil
}

// GetJob fetches the current state of a crawl job once.
func (c *Client) GetJob(ctx context.Context, jobID string) (CrawlResult, error) {
	resp, err := c.send(ctx, http.MethodGet, "/v1/job/"+url.PathEscape(jobID), "")
	if err != nil {
		return CrawlResult{}, err
	}
	return parseCrawlResult(resp), nil
}
