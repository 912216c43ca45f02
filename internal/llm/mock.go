package llm

import (
	"context"
	"strings"
	"time"
)

type mockGenerator struct {
	delay time.Duration
}

func NewMockGenerator() Generator { return &mockGenerator{delay: 20 * time.Millisecond} }

// Generate answers a multi-line prompt with one line per listed item after the
// header line, and anything else with a single bracketed completion. Output is
// emitted word by word so callers see real streaming.
func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
	}
	content := mockContent(req.Prompt)
	start := time.Now()
	words := strings.SplitAfter(content, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		if err := consumer(Chunk{
			Content: w,
			Partial: i < len(words)-1,
			Latency: m.delay + time.Since(start),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockGenerator) ListModels(ctx context.Context) ([]string, error) {
	return []string{"models/mock-fast", "models/mock-pro"}, nil
}

func mockContent(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	if len(lines) > 1 {
		var out []string
		for _, l := range lines[1:] {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, "["+l+": mock summary]")
			}
		}
		if len(out) > 0 {
			return strings.Join(out, "\n")
		}
	}
	return "[mock completion for " + strings.TrimSpace(prompt) + "]"
}
