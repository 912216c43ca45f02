package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrMissingAPIKey is returned by the hosted backend when no key is configured.
var ErrMissingAPIKey = errors.New("missing generative AI API key")

// GeminiGenerator talks to the hosted Gemini API. A single client is shared by
// all requests; it is safe for concurrent use.
type GeminiGenerator struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiGenerator(ctx context.Context, apiKey, defaultModel string, opts ...option.ClientOption) (*GeminiGenerator, error) {
	g := &GeminiGenerator{defaultModel: defaultModel}
	if apiKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GeminiGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiGenerator) model(req Request) *genai.GenerativeModel {
	name := req.Model
	if name == "" {
		name = g.defaultModel
	}
	model := g.client.GenerativeModel(trimModelPrefix(name))
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	return model
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	if g.client == nil {
		return ErrMissingAPIKey
	}
	iter := g.model(req).GenerateContentStream(ctx, genai.Text(req.Prompt))
	start := time.Now()
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return classifyGeminiError(err)
		}
		text := responseText(resp)
		if text == "" {
			continue
		}
		if err := consumer(Chunk{Content: text, Partial: true, Latency: time.Since(start)}); err != nil {
			return err
		}
	}
}

func (g *GeminiGenerator) ListModels(ctx context.Context) ([]string, error) {
	if g.client == nil {
		return nil, ErrMissingAPIKey
	}
	var names []string
	iter := g.client.ListModels(ctx)
	for {
		m, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, classifyGeminiError(err)
		}
		names = append(names, m.Name)
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func classifyGeminiError(err error) error {
	if status.Code(err) == codes.ResourceExhausted {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}
