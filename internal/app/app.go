package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"

	"ChatDigest/internal/config"
	"ChatDigest/internal/domain"
	"ChatDigest/internal/infrastructure/docs"
	"ChatDigest/internal/infrastructure/llm"
	"ChatDigest/internal/infrastructure/metrics"
	"ChatDigest/internal/infrastructure/notion"
	"ChatDigest/internal/infrastructure/parser"
	"ChatDigest/internal/infrastructure/resilience"
	"ChatDigest/internal/infrastructure/scheduler"
	"ChatDigest/internal/infrastructure/storage"
	"ChatDigest/internal/infrastructure/telegram"
	"ChatDigest/internal/logging"
	"ChatDigest/internal/ports"
	"ChatDigest/internal/scanner"
	"ChatDigest/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	metrics  *metrics.RunMetrics
	archive  *storage.PostgresRepository
	closers  []func() error
}

// Option customises adapters, mostly for tests.
type Option func(*options)

type options struct {
	httpClient *http.Client
	generator  ports.Generator
}

// WithHTTPClient sets the client shared by scrapers and sinks.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithGenerator replaces the configured summarization provider.
func WithGenerator(gen ports.Generator) Option {
	return func(o *options) { o.generator = gen }
}

// New builds every adapter from cfg. Close releases them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	platform := a.buildPlatform(o.httpClient)

	generator, err := a.buildGenerator(ctx, o)
	if err != nil {
		a.Close()
		return nil, err
	}

	sinks, err := a.buildSinks(ctx, o.httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	collection := cfg.Collection
	collector := usecase.NewCollector(
		usecase.NewSourceReader(platform),
		usecase.ContentFilter{
			MinLength:      collection.MinLength,
			Keywords:       collection.Keywords,
			AllowedSources: collection.AllowedSources,
		},
		collection.MaxMessages,
		collection.Concurrency,
		baseLogger.With("component", "collector"),
	)

	summarizer := usecase.NewSummarizer(
		generator,
		usecase.Templates{PerSource: cfg.Summarizer.Templates.PerSource, CrossSource: cfg.Summarizer.Templates.CrossSource},
		usecase.PromptCaps{PerSource: cfg.Summarizer.PromptCaps.PerSource, CrossSource: cfg.Summarizer.PromptCaps.CrossSource},
		cfg.Window.Duration,
	)

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Platform:        platform,
		Selector:        usecase.NewSourceSelector(cfg.Selection.Keywords, cfg.Selection.SortSources),
		Collector:       collector,
		Aggregator:      usecase.NewAggregator(cfg.Aggregation.Mode, cfg.Aggregation.Cap()),
		Summarizer:      summarizer,
		Dispatcher:      usecase.NewDispatcher(sinks, cfg.Sinks.ChunkLimit, baseLogger.With("component", "dispatcher")),
		Window:          cfg.Window.Duration,
		UnitConcurrency: cfg.Summarizer.Concurrency,
		Logger:          baseLogger.With("component", "pipeline"),
	})
	a.metrics = metrics.NewRunMetrics(cfg.Metrics.PushgatewayURL, cfg.Metrics.Instance, baseLogger.With("component", "metrics"))
	return a, nil
}

func (a *Application) buildPlatform(client *http.Client) *parser.StrategySource {
	registry := scanner.NewRegistry()
	registry.Register(parser.NewTelegramMirror(client, mirrorBaseURL(a.cfg.Sites), a.logger.With("component", "scanner.telegram")))
	registry.Register(parser.NewEditorialScanner(client, a.logger.With("component", "scanner.editorial")))

	sites := make([]scanner.Site, 0, len(a.cfg.Sites))
	for _, site := range a.cfg.Sites {
		sites = append(sites, scanner.Site(site))
	}
	return parser.NewStrategySource(registry, sites, a.logger.With("component", "source"))
}

// mirrorBaseURL lets a telegram site point the mirror at another host.
func mirrorBaseURL(sites []config.SiteConfig) string {
	for _, site := range sites {
		if site.Platform == config.PlatformTelegram && site.BaseURL != "" {
			return site.BaseURL
		}
	}
	return ""
}

func (a *Application) buildGenerator(ctx context.Context, o options) (ports.Generator, error) {
	cfg := a.cfg.Summarizer
	retry := resilience.Config{MaxRetries: cfg.MaxRetries}
	logger := a.logger.With("component", "generator", "provider", cfg.Provider)

	if o.generator != nil {
		return resilience.NewRetryingGenerator(o.generator, retry, logger), nil
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		gen, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			HTTPClient:   o.httpClient,
		})
		if err != nil {
			return nil, err
		}
		return resilience.NewRetryingGenerator(gen, retry, logger), nil
	default:
		gen, err := llm.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gen.Close)
		return resilience.NewRetryingGenerator(gen, retry, logger), nil
	}
}

// buildSinks returns the enabled sinks in dispatch order.
func (a *Application) buildSinks(ctx context.Context, client *http.Client) ([]ports.Sink, error) {
	cfg := a.cfg.Sinks
	retry := resilience.Config{MaxRetries: cfg.MaxRetries}

	var sinks []ports.Sink
	if cfg.Telegram.Enabled() {
		sinks = append(sinks, telegram.NewNotifier(telegram.Config{
			BotToken:   cfg.Telegram.BotToken,
			ChatID:     cfg.Telegram.ChatID,
			ChunkLimit: cfg.Telegram.ChunkLimit,
			Retry:      retry,
		}, client, a.logger.With("component", "sink.telegram")))
	}
	if cfg.Notion.Enabled() {
		sinks = append(sinks, notion.NewSink(notion.Config{
			APIKey:        cfg.Notion.APIKey,
			DatabaseID:    cfg.Notion.DatabaseID,
			Category:      cfg.Notion.Category,
			FixedCategory: cfg.Notion.FixedCategory,
			Retry:         retry,
		}, client, a.logger.With("component", "sink.notion")))
	}
	if cfg.Archive.Enabled {
		repo, err := a.openArchive(ctx, retry)
		if err != nil {
			return nil, err
		}
		a.archive = repo
		sinks = append(sinks, repo)
	}
	if cfg.Document.Enabled() {
		sinks = append(sinks, a.buildPublisher())
	}
	return sinks, nil
}

func (a *Application) openArchive(ctx context.Context, retry resilience.Config) (*storage.PostgresRepository, error) {
	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	repo := storage.NewPostgresRepository(db, retry)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("prepare archive: %w", err)
	}
	return repo, nil
}

func (a *Application) buildPublisher() *docs.Publisher {
	cfg := a.cfg.Sinks.Document
	path := cfg.Path
	// git runs inside RepoDir, so the pusher needs a path it cannot resolve twice.
	if cfg.RepoDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.RepoDir, path)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	var pusher ports.Pusher
	if cfg.Push {
		pusher = docs.NewGitPusher(cfg.RepoDir, cfg.Remote, cfg.Branch)
	}
	return docs.NewPublisher(docs.Config{Path: path, Title: cfg.Title}, pusher, a.logger.With("component", "sink.document"))
}

// Run executes the pipeline once for the window ending now.
func (a *Application) Run(ctx context.Context) (domain.RunStatus, error) {
	now := time.Now().In(a.cfg.Scheduler.Location())
	status, err := a.pipeline.Run(ctx, now)
	a.observe(ctx, status, err)
	return status, err
}

// Serve runs the pipeline on the cron schedule until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	spec := a.cfg.Scheduler.CronExpression
	if err := scheduler.Validate(spec); err != nil {
		return &domain.ConfigurationError{Field: "scheduler.cronExpression", Reason: err.Error()}
	}

	driver := scheduler.NewCronScheduler(spec, a.cfg.Scheduler.Location(), a.logger.With("component", "scheduler"))
	runs := usecase.NewScheduler(driver, a.pipeline, func(status domain.RunStatus, err error) {
		a.observe(context.WithoutCancel(ctx), status, err)
	})
	if err := runs.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return runs.Stop(stopCtx)
}

// ErrNoArchive is returned by History when the archive sink is disabled.
var ErrNoArchive = errors.New("report archive is not enabled")

// History lists the newest archived reports.
func (a *Application) History(ctx context.Context, limit uint64) ([]domain.Report, error) {
	if a.archive == nil {
		return nil, ErrNoArchive
	}
	return a.archive.RecentReports(ctx, limit)
}

func (a *Application) observe(ctx context.Context, status domain.RunStatus, err error) {
	if err != nil {
		a.logger.Error("run failed", "run_id", status.RunID, "error", err)
	}
	a.metrics.Observe(status, err)

	pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if pushErr := a.metrics.Push(pushCtx); pushErr != nil {
		a.logger.Warn("metrics push failed", "error", pushErr)
	}
}

// Close releases clients opened by New.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
