package httpdoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/kirillkom/shopping-assistant/internal/core/ports"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/resilience"
)

const operationOpen = "page.open"

var errPageClosed = errors.New("page already closed")

type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodyBytes   int64
}

func (c Config) normalize() Config {
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	}
	if strings.TrimSpace(c.AcceptLanguage) == "" {
		c.AcceptLanguage = "en-US,en;q=0.9"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 8 << 20
	}
	return c
}

// Browser loads result pages as plain HTTP documents. Cookies persist across
// pages so the provider sees one session.
type Browser struct {
	cfg    Config
	client *http.Client
	exec   *resilience.Executor
}

func New(cfg Config) (*Browser, error) {
	cfg = cfg.normalize()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Browser{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
	}, nil
}

func (b *Browser) WithResilience(exec *resilience.Executor) *Browser {
	b.exec = exec
	return b
}

func (b *Browser) Open(ctx context.Context, rawURL string) (ports.Page, error) {
	doc, err := resilience.Do(ctx, b.exec, operationOpen, func(callCtx context.Context) (*document, error) {
		return b.load(callCtx, rawURL)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded(operationOpen, err, resilience.ClassifyTransport)
	}
	return &page{url: doc.url, content: doc.content}, nil
}

type document struct {
	url     string
	content string
}

func (b *Browser) load(ctx context.Context, rawURL string) (*document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operationOpen, err)
	}
	req.Header.Set("User-Agent", b.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", b.cfg.AcceptLanguage)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operationOpen, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{
			Operation:  operationOpen,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, b.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", operationOpen, err)
	}
	return &document{url: resp.Request.URL.String(), content: string(body)}, nil
}

// page is a static document; every snapshot returns the loaded content.
type page struct {
	url     string
	content string

	mu     sync.Mutex
	closed bool
}

func (p *page) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", errPageClosed
	}
	return p.content, nil
}

func (p *page) URL() string {
	return p.url
}

func (p *page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPageClosed
	}
	p.closed = true
	p.content = ""
	return nil
}
