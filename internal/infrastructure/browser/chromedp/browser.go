package chromedp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/kirillkom/shopping-assistant/internal/core/ports"
)

var errTabClosed = errors.New("tab already closed")

type Config struct {
	ExecPath   string
	UserAgent  string
	Headless   bool
	NavTimeout time.Duration
}

// Browser keeps one headless browser process and opens a tab per result page.
type Browser struct {
	cfg Config

	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

func New(cfg Config) (*Browser, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	if path := strings.TrimSpace(cfg.ExecPath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start headless browser: %w", err)
	}
	return &Browser{
		cfg:           cfg,
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
	}, nil
}

func (b *Browser) Open(ctx context.Context, rawURL string) (ports.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p := &tab{ctx: tabCtx, cancel: cancelTab, url: rawURL}

	err := p.run(ctx, b.cfg.NavTimeout, chromedp.Navigate(rawURL), chromedp.Location(&p.url))
	if err != nil {
		_ = p.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("navigate: %w", err)
	}
	return p, nil
}

func (b *Browser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string

	mu     sync.Mutex
	closed bool
}

// run executes actions in the tab, aborting them when the caller's context
// ends without closing the tab itself.
func (t *tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errTabClosed
	}

	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (t *tab) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, 5*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return html, nil
}

func (t *tab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errTabClosed
	}
	t.closed = true
	t.cancel()
	return nil
}
