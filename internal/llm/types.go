package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/loqalabs/musclecoach/internal/config"
)

var (
	// ErrRateLimited reports that the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("llm provider rate limited")
	// ErrNoModels reports an empty model catalog.
	ErrNoModels = errors.New("no models available")
)

// Request describes a language model prompt.
type Request struct {
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
	RequestID   string
}

// Chunk represents streamed model output.
type Chunk struct {
	Content string
	Partial bool
	Latency time.Duration
}

// Generator defines a pluggable LLM backend. Chunks are delivered to consumer
// in the order the backend produces them; a consumer error stops generation.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// OptionsFromConfig builds request defaults from config.
func OptionsFromConfig(cfg config.LLMConfig, model string) Request {
	req := Request{Model: cfg.SummaryModel, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	if model != "" {
		req.Model = model
	}
	return req
}

// Complete drains a generation into a single string. It is the buffered
// equivalent of streaming the same request.
func Complete(ctx context.Context, gen Generator, req Request) (string, error) {
	var b strings.Builder
	err := gen.Generate(ctx, req, func(chunk Chunk) error {
		b.WriteString(chunk.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
