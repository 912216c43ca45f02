package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSelectModelPreferenceOrder(t *testing.T) {
	available := []string{
		"models/gemini-1.0-pro",
		"models/gemini-1.5-pro-latest",
		"models/gemini-2.5-flash-lite",
		"models/gemini-2.5-flash",
	}
	got, err := SelectModel(available, []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-1.5-pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// prefix match: flash-lite is listed first and also starts with gemini-2.5-flash
	if got != "gemini-2.5-flash-lite" {
		t.Fatalf("expected gemini-2.5-flash-lite, got %q", got)
	}
}

func TestSelectModelPrimaryWins(t *testing.T) {
	available := []string{"models/gemini-1.5-pro", "models/gemini-2.5-pro-preview"}
	got, err := SelectModel(available, []string{"gemini-2.5-pro", "gemini-1.5-pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "gemini-2.5-pro-preview" {
		t.Fatalf("expected primary preference, got %q", got)
	}
}

func TestSelectModelFallsBackToFirst(t *testing.T) {
	got, err := SelectModel([]string{"models/embedding-001", "models/aqa"}, []string{"gemini-2.5-pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "embedding-001" {
		t.Fatalf("expected first available, got %q", got)
	}
}

func TestSelectModelEmptyCatalog(t *testing.T) {
	if _, err := SelectModel(nil, []string{"gemini-2.5-pro"}); !errors.Is(err, ErrNoModels) {
		t.Fatalf("expected ErrNoModels, got %v", err)
	}
}

type countingLister struct {
	calls  int
	models []string
	err    error
}

func (c *countingLister) ListModels(context.Context) ([]string, error) {
	c.calls++
	return c.models, c.err
}

func TestCatalogCachesListing(t *testing.T) {
	lister := &countingLister{models: []string{"models/gemini-2.5-pro"}}
	catalog := NewCatalog(lister, []string{"gemini-2.5-pro"}, time.Minute)

	for i := 0; i < 3; i++ {
		model, err := catalog.Select(context.Background())
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if model != "gemini-2.5-pro" {
			t.Fatalf("unexpected model %q", model)
		}
	}
	if lister.calls != 1 {
		t.Fatalf("expected a single listing call, got %d", lister.calls)
	}
}

func TestCatalogDoesNotCacheFailures(t *testing.T) {
	lister := &countingLister{err: errors.New("boom")}
	catalog := NewCatalog(lister, nil, time.Minute)
	if _, err := catalog.Select(context.Background()); err == nil {
		t.Fatal("expected listing error")
	}
	lister.err = nil
	lister.models = []string{"models/gemini-2.5-flash"}
	model, err := catalog.Select(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if model != "gemini-2.5-flash" || lister.calls != 2 {
		t.Fatalf("expected fresh listing after failure, got %q after %d calls", model, lister.calls)
	}
}
