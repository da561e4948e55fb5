package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/shopping-assistant/internal/config"
	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/core/ports"
	"github.com/kirillkom/shopping-assistant/internal/core/query"
	"github.com/kirillkom/shopping-assistant/internal/core/usecase"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/browser/chromedp"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/browser/httpdoc"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/extractor/productcard"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/memory"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/ratelimit"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue        *nats.Queue
	SearchUC     *usecase.SearchUseCase
	IntentUC     *usecase.IntentUseCase
	CredentialUC *usecase.CredentialUseCase
	Exporter     ports.ResultExporter

	closers []func()
}

type Option func(*options)

type options struct {
	observer     resilience.Observer
	requireQueue bool
}

// WithResilienceObserver reports retries and breaker transitions of every
// outbound dependency to observer.
func WithResilienceObserver(observer resilience.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithQueue connects to NATS even when search events are disabled.
func WithQueue() Option {
	return func(o *options) {
		o.requireQueue = true
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	turns, credentials, results, err := app.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var events ports.SearchEventPublisher
	if cfg.EventsEnabled || o.requireQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Subjects{
			Completed: cfg.NATSCompletedSubject,
			Requests:  cfg.NATSRequestSubject,
		}, nats.Options{
			MaxInFlight:        cfg.NATSMaxInFlight,
			ResilienceExecutor: newExecutor(resilience.DefaultConfig(), o.observer),
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
		if cfg.EventsEnabled {
			events = queue
		}
	}

	vocab, err := query.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	if base := strings.TrimSpace(cfg.ProviderBaseURL); base != "" {
		vocab.BaseURL = strings.TrimRight(base, "/")
	}
	selectors, err := productcard.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return nil, fmt.Errorf("load selectors: %w", err)
	}

	browser, err := app.openBrowser(cfg, o.observer)
	if err != nil {
		return nil, err
	}

	inference := openai.New(openai.Config{
		BaseURL:     cfg.InferenceBaseURL,
		Model:       cfg.InferenceModel,
		Temperature: float32(cfg.InferenceTemperature),
		MaxTokens:   cfg.InferenceMaxTokens,
		JSONMode:    cfg.InferenceJSONMode,
		Timeout:     cfg.InferenceTimeout,
	}).WithResilience(newExecutor(resilience.DefaultConfig(), o.observer))

	credentialUC := usecase.NewCredentialUseCase(credentials, inference, usecase.CredentialPolicy{
		KeyPrefix:    cfg.InferenceKeyPrefix,
		MinKeyLength: cfg.InferenceKeyMinLen,
		DefaultKey:   cfg.InferenceAPIKey,
		ProbeTimeout: cfg.InferenceTimeout,
	})
	intentUC := usecase.NewIntentUseCase(inference, turns, usecase.IntentOptions{
		ContextTurns:      cfg.IntentContextTurns,
		Timeout:           cfg.InferenceTimeout,
		AppendMustInclude: cfg.AppendMustInclude,
	})
	fetcher := usecase.NewResultFetcher(browser, productcard.NewExtractor(selectors), usecase.FetchOptions{
		MaxAttempts:  cfg.FetchMaxAttempts,
		InitialDelay: cfg.FetchInitialDelay,
		PollDelay:    cfg.FetchPollDelay,
		ErrorDelay:   cfg.FetchErrorDelay,
	})
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.ProviderRateLimit,
		Window:      cfg.ProviderWindow,
		Spacing:     cfg.RequestDelay,
	})
	searchUC := usecase.NewSearchUseCase(
		credentialUC,
		intentUC,
		query.NewBuilder(vocab),
		limiter,
		fetcher,
		results,
		events,
		usecase.SearchOptions{
			Timeout: cfg.SearchTimeout,
			Settings: domain.Settings{
				MaxResults:    cfg.MaxResults,
				SkipSponsored: cfg.SkipSponsored,
				RequestDelay:  cfg.RequestDelay,
			},
		},
	)

	app.SearchUC = searchUC
	app.IntentUC = intentUC
	app.CredentialUC = credentialUC
	app.Exporter = xlsx.NewExporter()
	ok = true
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config) (ports.ConversationStore, ports.CredentialStore, ports.SearchResultStore, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		slog.Info("stores_in_memory")
		return memory.NewConversationStore(), memory.NewCredentialStore(), memory.NewResultStore(), nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { closeDB(db) })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return postgres.NewConversationRepository(db),
		postgres.NewCredentialRepository(db),
		postgres.NewResultRepository(db),
		nil
}

func (a *App) openBrowser(cfg config.Config, observer resilience.Observer) (ports.Browser, error) {
	switch cfg.BrowserMode {
	case config.BrowserModeChromedp:
		b, err := chromedp.New(chromedp.Config{
			ExecPath:  cfg.BrowserExecPath,
			UserAgent: cfg.BrowserUserAgent,
			Headless:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless browser: %w", err)
		}
		a.closers = append(a.closers, func() { _ = b.Close() })
		return b, nil
	default:
		b, err := httpdoc.New(httpdoc.Config{UserAgent: cfg.BrowserUserAgent})
		if err != nil {
			return nil, fmt.Errorf("init http browser: %w", err)
		}
		return b.WithResilience(newExecutor(resilience.PageFetchConfig(), observer)), nil
	}
}

func newExecutor(cfg resilience.Config, observer resilience.Observer) *resilience.Executor {
	exec := resilience.NewExecutor(cfg)
	if observer != nil {
		exec.WithObserver(observer)
	}
	return exec
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
