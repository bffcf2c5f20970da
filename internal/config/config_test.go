package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
api:
  key: secret
  base_url: http://localhost:8080
  timeout_seconds: 45
  user_agent: test-agent
poll:
  max_polls: 20
  default_delay_ms: 2000
ratelimit:
  rps: 2.5
  burst: 3
storage:
  backend: local
  base_dir: /tmp/results
  prefix: runs
db:
  dsn: postgres://localhost/crawl
  table: jobs
pubsub:
  project_id: proj
  topic_name: finished
metrics:
  addr: ":9090"
tracing:
  enabled: true
  service_name: crawl-cli
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Key != "secret" || cfg.API.BaseURL != "http://localhost:8080" {
		t.Fatalf("expected api overrides, got %+v", cfg.API)
	}
	if got := cfg.RequestTimeout(); got != 45*time.Second {
		t.Fatalf("expected request timeout 45s, got %v", got)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.ServiceName != "crawl-cli" {
		t.Fatalf("expected tracing overrides, got %+v", cfg.Tracing)
	}
	if cfg.Poll.MaxPolls != 20 || cfg.PollDelay() != 2*time.Second {
		t.Fatalf("expected poll overrides, got %+v", cfg.Poll)
	}
	if cfg.RateLimit.RPS != 2.5 || cfg.RateLimit.Burst != 3 {
		t.Fatalf("expected rate limit overrides, got %+v", cfg.RateLimit)
	}
	if cfg.Storage.Backend != StorageLocal || cfg.Storage.Prefix != "runs" {
		t.Fatalf("expected storage overrides, got %+v", cfg.Storage)
	}
	if cfg.DB.Table != "jobs" || cfg.PubSub.TopicName != "finished" || cfg.Metrics.Addr != ":9090" {
		t.Fatalf("expected db/pubsub/metrics overrides, got %+v %+v %+v", cfg.DB, cfg.PubSub, cfg.Metrics)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
}

// Not parallel: t.Setenv forbids it.
func TestLoadDefaultsFromEnv(t *testing.T) {
	t.Setenv("WEBCRAWLER_API_KEY", "env-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Key != "env-key" {
		t.Fatalf("expected key from env, got %q", cfg.API.Key)
	}
	if cfg.API.BaseURL != "https://api.webcrawlerapi.com" {
		t.Fatalf("unexpected default base url %q", cfg.API.BaseURL)
	}
	if cfg.Poll.MaxPolls != 100 || cfg.PollDelay() != 5*time.Second {
		t.Fatalf("unexpected poll defaults %+v", cfg.Poll)
	}
	if cfg.Storage.Backend != StorageNone || cfg.DB.Table != "webcrawler_jobs" {
		t.Fatalf("unexpected storage/db defaults %+v %+v", cfg.Storage, cfg.DB)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		API:     APIConfig{Key: "k", TimeoutSeconds: 30},
		Poll:    PollConfig{MaxPolls: 10, DefaultDelayMs: 100},
		Storage: StorageConfig{Backend: StorageNone},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to be valid, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing key", mutate: func(c *Config) { c.API.Key = "  " }, want: "api.key"},
		{name: "invalid timeout", mutate: func(c *Config) { c.API.TimeoutSeconds = 0 }, want: "api.timeout_seconds"},
		{name: "invalid max polls", mutate: func(c *Config) { c.Poll.MaxPolls = 0 }, want: "poll.max_polls"},
		{name: "invalid delay", mutate: func(c *Config) { c.Poll.DefaultDelayMs = -1 }, want: "poll.default_delay_ms"},
		{name: "negative rps", mutate: func(c *Config) { c.RateLimit.RPS = -1 }, want: "ratelimit.rps"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = StorageLocal }, want: "storage.base_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.gcs_bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
		{name: "two job databases", mutate: func(c *Config) { c.DB = DBConfig{DSN: "postgres://x", SQLitePath: "jobs.db"} }, want: "db.sqlite_path"},
		{name: "nats without subject", mutate: func(c *Config) { c.NATS.URL = "nats://localhost:4222" }, want: "nats.subject"},
		{
			name: "nats and pubsub",
			mutate: func(c *Config) {
				c.NATS = NATSConfig{URL: "nats://localhost:4222", Subject: "jobs"}
				c.PubSub = PubSubConfig{ProjectID: "p", TopicName: "t"}
			},
			want: "mutually exclusive",
		},
		{name: "tracing without name", mutate: func(c *Config) { c.Tracing = TracingConfig{Enabled: true} }, want: "tracing.service_name"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
