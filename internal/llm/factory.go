package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/loqalabs/musclecoach/internal/config"
)

// Backend bundles the configured generator with its model lister and a
// release hook.
type Backend struct {
	Generator Generator
	Lister    ModelLister
	closer    io.Closer
}

func (b Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// staticLister reports a fixed catalog for backends that cannot enumerate.
type staticLister []string

func (s staticLister) ListModels(context.Context) ([]string, error) { return s, nil }

func New(ctx context.Context, cfg config.LLMConfig) (Backend, error) {
	switch cfg.Mode {
	case "mock":
		gen := NewMockGenerator()
		return Backend{Generator: gen, Lister: gen.(ModelLister)}, nil
	case "gemini":
		gen, err := NewGeminiGenerator(ctx, cfg.APIKey, cfg.SummaryModel)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Generator: gen, Lister: gen, closer: gen}, nil
	case "ollama":
		gen := NewOllamaGenerator(cfg.Endpoint, cfg.SummaryModel)
		return Backend{Generator: gen, Lister: gen.(ModelLister)}, nil
	case "exec":
		gen, err := NewExecGenerator(cfg.Command)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Generator: gen, Lister: staticLister{cfg.SummaryModel}}, nil
	default:
		return Backend{}, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}
