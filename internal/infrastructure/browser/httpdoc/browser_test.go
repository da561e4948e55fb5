package httpdoc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/resilience"
)

func TestOpenLoadsDocumentAndKeepsCookies(t *testing.T) {
	var sawCookie atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" || r.Header.Get("Accept-Language") == "" {
			t.Errorf("expected browser headers, got %v", r.Header)
		}
		if _, err := r.Cookie("session-id"); err == nil {
			sawCookie.Store(true)
		}
		http.SetCookie(w, &http.Cookie{Name: "session-id", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`<div class="s-main-slot"></div>`))
	}))
	defer server.Close()

	b, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p, err := b.Open(context.Background(), server.URL+"/s?k=lamp")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	content, err := p.Snapshot(context.Background())
	if err != nil || !strings.Contains(content, "s-main-slot") {
		t.Fatalf("unexpected snapshot %q (%v)", content, err)
	}
	if !strings.HasSuffix(p.URL(), "/s?k=lamp") {
		t.Fatalf("unexpected page url %q", p.URL())
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := p.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected snapshot after close to fail")
	}

	second, err := b.Open(context.Background(), server.URL+"/s?k=desk")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = second.Close()
	if !sawCookie.Load() {
		t.Fatalf("expected cookie from first page to be sent on second")
	}
}

func TestOpenIssuesOneProviderRequestOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	b, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.WithResilience(resilience.NewExecutor(resilience.PageFetchConfig()))

	_, err = b.Open(context.Background(), server.URL)
	if err == nil {
		t.Fatalf("expected 503 to fail the open")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 provider request per open, got %d", calls.Load())
	}
}

func TestOpenReportsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "robot check", http.StatusBadGateway)
	}))
	defer server.Close()

	b, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = b.Open(context.Background(), server.URL)
	var statusErr *resilience.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 status error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
}
