package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawlerapi-go/internal/app"
	"github.com/JakeFAU/webcrawlerapi-go/internal/config"
	"github.com/JakeFAU/webcrawlerapi-go/internal/logging"
	"github.com/JakeFAU/webcrawlerapi-go/internal/recorder"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Client is the subset of the API client the commands call.
type Client interface {
	Crawl(ctx context.Context, req webcrawlerapi.CrawlRequest) (webcrawlerapi.CrawlResult, error)
	GetJob(ctx context.Context, jobID string) (webcrawlerapi.CrawlResult, error)
	Scrape(ctx context.Context, req webcrawlerapi.ScrapeRequest) (webcrawlerapi.ScrapeResult, error)
	ScrapeAsync(ctx context.Context, req webcrawlerapi.ScrapeRequest) (string, error)
	GetScrape(ctx context.Context, scrapeID string) (webcrawlerapi.ScrapeResult, error)
}

// ResultRecorder persists finished jobs.
type ResultRecorder interface {
	Enabled() bool
	RecordCrawl(ctx context.Context, result webcrawlerapi.CrawlResult) (recorder.Receipt, error)
	RecordScrape(ctx context.Context, result webcrawlerapi.ScrapeResult, submittedURL string) (recorder.Receipt, error)
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close(ctx context.Context) error
	GetLogger() *zap.Logger
	GetClient() Client
	GetRecorder() ResultRecorder
}

// rootOptions carries the persistent flags.
type rootOptions struct {
	configPath  string
	metricsAddr string
	logLevel    string
	output      string
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(ctx context.Context, opts rootOptions) (App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	built, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	opsCtx, cancel := context.WithCancel(ctx)
	built.StartOps(opsCtx)
	return &services{app: built, stopOps: cancel}, nil
}

// services adapts *app.App to the App interface.
type services struct {
	app     *app.App
	stopOps context.CancelFunc
}

func (s *services) Close(ctx context.Context) error {
	s.stopOps()
	return s.app.Close(ctx)
}

func (s *services) GetLogger() *zap.Logger { return s.app.Logger() }

func (s *services) GetClient() Client { return s.app.Client() }

func (s *services) GetRecorder() ResultRecorder { return s.app.Recorder() }

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "webcrawler",
		Short: "Submit crawl and scrape jobs to WebCrawlerAPI and wait for the results.",
		Long: `webcrawler is a command line client for the WebCrawlerAPI service.
It submits multi-page crawls and single-page scrapes, polls the job status
until the service reports a final state, prints the result as JSON or YAML
and can record it to blob storage, a job database and a message topic.`,
		SilenceUsage: true,

		// Build the application after flags are parsed but before the
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(opts.output); err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (env WEBCRAWLER_* also applies)")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /readyz on this address")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", formatJSON, "result format: json or yaml")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newScrapeStatusCmd())
	cmd.AddCommand(newJobCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the App for a subcommand and closes it once run returns,
// whether or not run failed.
func withApp(cmd *cobra.Command, run func(ctx context.Context, a App) error) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
		defer cancel()
		if closeErr := appInstance.Close(closeCtx); closeErr != nil {
			appInstance.GetLogger().Warn("close application services failed", zap.Error(closeErr))
		}
	}()
	return run(cmd.Context(), appInstance)
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context, which interrupts any wait in progress.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
