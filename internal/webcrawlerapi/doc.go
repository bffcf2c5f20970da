// Package webcrawlerapi is a client for the WebCrawlerAPI job service.
//
// The service runs two kinds of asynchronous jobs: crawls, which visit a site
// and return a list of job items with links to stored content, and scrapes,
// which fetch a single page and inline its content. Client submits a job and
// then polls its status until the job reaches a terminal state or the poll
// budget runs out:
//
//   - Crawl: terminal on done, error or cancelled. The wait between polls is
//     the server's recommended_pull_delay_ms when positive, otherwise the
//     client default.
//   - Scrape: terminal on done or error only. The wait between polls is
//     always the client default.
//
// Running out of polls is not an error: the last observed result is returned
// and may still carry a non-terminal status. Responses are read with package
// jsonscan, which extracts only the fields the client needs.
package webcrawlerapi
