package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kirillkom/shopping-assistant/internal/config"
	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

func TestNewWiresInMemoryStack(t *testing.T) {
	app, err := New(context.Background(), config.Config{BrowserMode: config.BrowserModeHTTP})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer app.Close()

	if app.SearchUC == nil || app.IntentUC == nil || app.CredentialUC == nil || app.Exporter == nil {
		t.Fatalf("expected all use cases wired, got %+v", app)
	}
	if app.Queue != nil {
		t.Fatalf("expected no queue when events are disabled")
	}

	_, err = app.SearchUC.LastResults(context.Background(), "u1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for empty store, got %v", err)
	}

	status, err := app.CredentialUC.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if status.Configured {
		t.Fatalf("expected no credential configured, got %+v", status)
	}
}

func TestNewFailsOnMissingVocabulary(t *testing.T) {
	_, err := New(context.Background(), config.Config{
		VocabularyFile: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	if err == nil {
		t.Fatalf("expected error for missing vocabulary file")
	}
}
