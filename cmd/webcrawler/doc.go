// Package main hosts the webcrawler command line client.
//
// Architecture overview:
//   - Client: internal/webcrawlerapi.Client submits crawl and scrape jobs to WebCrawlerAPI, then polls the job
//     status endpoint until the service reports a terminal state or the poll budget runs out. Crawls honor the
//     recommended_pull_delay_ms hint from each status response; scrapes wait a fixed delay between checks.
//     Responses are read field by field with internal/jsonscan rather than decoded into a tree.
//   - Transport: requests go out through a Colly collector (internal/transport/colly) wrapped in middlewares from
//     internal/transport that stamp an X-Request-ID header, log each call, record Prometheus metrics and, when
//     configured, apply a per-host token bucket (internal/policy/ratelimit).
//   - Recording: finished jobs can be persisted by internal/recorder. The serialized result goes to a BlobStore
//     (memory/local/GCS), a row goes to Postgres and a compact notice is published to Pub/Sub with the trace context
//     in its attributes. Every sink is optional.
//   - Configuration & plumbing: Viper populates config from a file and WEBCRAWLER_* env vars; zap provides
//     structured logging; cobra supplies the commands. With --metrics-addr the process also serves /metrics,
//     /healthz and /readyz through internal/api while a command runs.
//
// Operational notes:
//   - Interrupts: SIGINT and SIGTERM cancel the command context. A wait in progress stops at the next sleep or
//     request and the command fails with an interrupted error.
//   - Poll budget: poll.max_polls bounds every wait; --max-polls overrides it per command. When the budget runs out
//     the last observed state is printed, even if it is not final.
//
// Quick checklist:
//   - Set WEBCRAWLER_API_KEY (or api.key in the config file).
//   - Crawl: go run ./cmd/webcrawler crawl https://example.com --items-limit 5 --scrape-type markdown
//   - Scrape: go run ./cmd/webcrawler scrape https://example.com, or --async followed by scrape-status <id>.
//   - Record results: WEBCRAWLER_STORAGE_BACKEND=local WEBCRAWLER_STORAGE_BASE_DIR=./out, plus WEBCRAWLER_DB_DSN
//     and WEBCRAWLER_PUBSUB_TOPIC_NAME / WEBCRAWLER_PUBSUB_PROJECT_ID when those sinks are wanted.
package main
