// Package recorder persists finished job results: the serialized result goes
// to a blob store, a row goes to a job store and a notice goes to a topic.
// Each sink is optional.
package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawlerapi-go/internal/metrics"
	"github.com/JakeFAU/webcrawlerapi-go/internal/storage"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

// Job kinds used in blob paths, rows and notices.
const (
	KindCrawl  = "crawl"
	KindScrape = "scrape"
)

const defaultPrefix = "results"

// Publisher sends a payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher fingerprints the serialized result.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces record identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

// Config controls naming.
type Config struct {
	// Prefix is the first blob path segment.
	Prefix string
	// Topic is passed to the publisher; publishing is skipped when empty.
	Topic string
}

// Deps wires the recorder. Blobs, Jobs and Publisher may be nil.
type Deps struct {
	Blobs     storage.BlobStore
	Jobs      storage.JobStore
	Publisher Publisher
	Hasher    Hasher
	IDs       IDGenerator
	Clock     Clock
	Logger    *zap.Logger
}

// Outcome is a finished job in sink-neutral form.
type Outcome struct {
	Kind      string
	JobID     string
	Status    string
	URL       string
	ItemCount int
	Result    any
}

// Receipt reports where an outcome ended up.
type Receipt struct {
	RecordID  string
	BlobURI   string
	Hash      string
	MessageID string
}

// Notice is the payload published for every recorded outcome.
type Notice struct {
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	URL       string    `json:"url"`
	BlobURI   string    `json:"blob_uri,omitempty"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder fans a finished job out to the configured sinks.
type Recorder struct {
	cfg  Config
	deps Deps
}

// New validates deps and builds a Recorder.
func New(cfg Config, deps Deps) (*Recorder, error) {
	if deps.Hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if deps.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	metrics.Init()
	return &Recorder{cfg: cfg, deps: deps}, nil
}

// Enabled reports whether any sink is configured.
func (r *Recorder) Enabled() bool {
	return r.deps.Blobs != nil || r.deps.Jobs != nil || (r.deps.Publisher != nil && r.cfg.Topic != "")
}

// RecordCrawl records a crawl result.
func (r *Recorder) RecordCrawl(ctx context.Context, result webcrawlerapi.CrawlResult) (Receipt, error) {
	return r.Record(ctx, Outcome{
		Kind:      KindCrawl,
		JobID:     result.ID,
		Status:    string(result.Status),
		URL:       result.URL,
		ItemCount: len(result.Items),
		Result:    result,
	})
}

// RecordScrape records a scrape result. The scrape status payload may omit
// the page URL, so the submitted URL is used when it is missing.
func (r *Recorder) RecordScrape(ctx context.Context, result webcrawlerapi.ScrapeResult, submittedURL string) (Receipt, error) {
	pageURL := result.URL
	if pageURL == "" {
		pageURL = submittedURL
	}
	return r.Record(ctx, Outcome{
		Kind:      KindScrape,
		JobID:     result.ID,
		Status:    string(result.Status),
		URL:       pageURL,
		ItemCount: 1,
		Result:    result,
	})
}

// Record writes the outcome to every configured sink in order: blob, row,
// notice. The first failure stops the chain.
func (r *Recorder) Record(ctx context.Context, out Outcome) (Receipt, error) {
	if out.JobID == "" {
		return Receipt{}, fmt.Errorf("record %s: job id is required", out.Kind)
	}
	logger := r.deps.Logger.With(zap.String("kind", out.Kind), zap.String("job_id", out.JobID))

	data, err := json.Marshal(out.Result)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal %s result: %w", out.Kind, err)
	}
	hash, err := r.deps.Hasher.Hash(data)
	if err != nil {
		return Receipt{}, fmt.Errorf("hash %s result: %w", out.Kind, err)
	}
	receipt := Receipt{Hash: hash}
	now := r.deps.Clock.Now()

	if r.deps.Blobs != nil {
		objectPath := path.Join(r.cfg.Prefix, out.Kind, out.JobID, hash+".json")
		uri, err := r.deps.Blobs.PutObject(ctx, objectPath, "application/json", bytes.NewReader(data))
		metrics.ObserveRecord("blob", err)
		if err != nil {
			return receipt, fmt.Errorf("store %s result: %w", out.Kind, err)
		}
		receipt.BlobURI = uri
		logger.Debug("result stored", zap.String("uri", uri))
	}

	if r.deps.Jobs != nil {
		id, err := r.deps.IDs.NewID()
		if err != nil {
			return receipt, fmt.Errorf("record %s: %w", out.Kind, err)
		}
		err = r.deps.Jobs.RecordJob(ctx, storage.JobRecord{
			ID:          id,
			JobID:       out.JobID,
			Kind:        out.Kind,
			Status:      out.Status,
			URL:         out.URL,
			ItemCount:   out.ItemCount,
			BlobURI:     receipt.BlobURI,
			ContentHash: hash,
			RecordedAt:  now,
		})
		metrics.ObserveRecord("db", err)
		if err != nil {
			return receipt, fmt.Errorf("record %s: %w", out.Kind, err)
		}
		receipt.RecordID = id
	}

	if r.deps.Publisher != nil && r.cfg.Topic != "" {
		msgID, err := r.deps.Publisher.Publish(ctx, r.cfg.Topic, Notice{
			JobID:     out.JobID,
			Kind:      out.Kind,
			Status:    out.Status,
			URL:       out.URL,
			BlobURI:   receipt.BlobURI,
			Hash:      hash,
			Timestamp: now,
		})
		metrics.ObserveRecord("publish", err)
		if err != nil {
			return receipt, fmt.Errorf("publish %s notice: %w", out.Kind, err)
		}
		receipt.MessageID = msgID
	}

	logger.Info("result recorded",
		zap.String("status", out.Status),
		zap.String("hash", hash),
		zap.String("record_id", receipt.RecordID),
	)
	return receipt, nil
}
