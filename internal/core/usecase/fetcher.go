package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/core/ports"
)

var errRetryBudgetExhausted = errors.New("retry budget exhausted without candidates")

type FetchOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	PollDelay    time.Duration
	ErrorDelay   time.Duration
}

func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		MaxAttempts:  5,
		InitialDelay: 2500 * time.Millisecond,
		PollDelay:    1500 * time.Millisecond,
		ErrorDelay:   1000 * time.Millisecond,
	}
}

func (o FetchOptions) normalize() FetchOptions {
	def := DefaultFetchOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.InitialDelay < 0 {
		o.InitialDelay = def.InitialDelay
	}
	if o.PollDelay < 0 {
		o.PollDelay = def.PollDelay
	}
	if o.ErrorDelay < 0 {
		o.ErrorDelay = def.ErrorDelay
	}
	return o
}

type FetchOutcome struct {
	State      domain.FetchState
	Attempts   int
	Candidates []domain.ProductRecord
	PageURL    string
}

// ResultFetcher owns one result page per search: it opens the page, polls until
// the content is ready and extracts candidates within a fixed attempt budget.
type ResultFetcher struct {
	browser   ports.Browser
	extractor ports.ResultExtractor
	opts      FetchOptions
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewResultFetcher(browser ports.Browser, extractor ports.ResultExtractor, opts FetchOptions) *ResultFetcher {
	return &ResultFetcher{
		browser:   browser,
		extractor: extractor,
		opts:      opts.normalize(),
		sleep:     sleepContext,
	}
}

// Fetch runs the fetch state machine. Exhausting the attempt budget yields
// ErrNoProductsFound; a cancelled context yields the context error. The page is
// closed on every path once it was opened.
func (f *ResultFetcher) Fetch(ctx context.Context, url string, opts domain.ExtractOptions) (FetchOutcome, error) {
	out := FetchOutcome{State: domain.FetchIdle, PageURL: url}
	var (
		page    ports.Page
		content string
		delay   = f.opts.InitialDelay
	)

	for {
		switch out.State {
		case domain.FetchIdle:
			out.State = domain.FetchPageOpening

		case domain.FetchPageOpening:
			opened, err := f.browser.Open(ctx, url)
			if err != nil {
				out.State = domain.FetchFailed
				if ctxErr := ctx.Err(); ctxErr != nil {
					return out, ctxErr
				}
				return out, domain.WrapError(domain.ErrNoProductsFound, "open result page", err)
			}
			page = opened
			defer releasePage(page)
			if pageURL := page.URL(); pageURL != "" {
				out.PageURL = pageURL
			}
			out.State = domain.FetchPollingReady

		case domain.FetchPollingReady:
			if out.Attempts >= f.opts.MaxAttempts {
				out.State = domain.FetchFailed
				continue
			}
			out.Attempts++
			if err := f.sleep(ctx, delay); err != nil {
				out.State = domain.FetchFailed
				return out, err
			}
			delay = f.opts.PollDelay

			snapshot, err := page.Snapshot(ctx)
			if err != nil {
				if err := f.attemptFailed(ctx, out, err); err != nil {
					out.State = domain.FetchFailed
					return out, err
				}
				continue
			}
			if !f.extractor.Ready(snapshot) {
				slog.Debug("fetch_attempt", "attempt", out.Attempts, "state", out.State, "ready", false)
				continue
			}
			content = snapshot
			out.State = domain.FetchExtracting

		case domain.FetchExtracting:
			candidates, err := f.extractor.Extract(content, out.PageURL, opts)
			if err != nil {
				out.State = domain.FetchPollingReady
				if err := f.attemptFailed(ctx, out, err); err != nil {
					out.State = domain.FetchFailed
					return out, err
				}
				continue
			}
			slog.Debug("fetch_attempt", "attempt", out.Attempts, "state", out.State, "candidates", len(candidates))
			if len(candidates) == 0 {
				out.State = domain.FetchPollingReady
				continue
			}
			out.Candidates = candidates
			out.State = domain.FetchDone

		case domain.FetchDone:
			return out, nil

		case domain.FetchFailed:
			return out, domain.WrapError(domain.ErrNoProductsFound, "fetch results", fmt.Errorf("%w after %d attempts", errRetryBudgetExhausted, out.Attempts))

		default:
			return out, fmt.Errorf("fetch results: unknown state %q", out.State)
		}
	}
}

func (f *ResultFetcher) attemptFailed(ctx context.Context, out FetchOutcome, err error) error {
	slog.Warn("fetch_attempt",
		"attempt", out.Attempts,
		"max_attempts", f.opts.MaxAttempts,
		"state", out.State,
		"error", err,
	)
	return f.sleep(ctx, f.opts.ErrorDelay)
}

func releasePage(page ports.Page) {
	if err := page.Close(); err != nil {
		slog.Warn("page_release_failed", "url", page.URL(), "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
