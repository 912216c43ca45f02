package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loqalabs/musclecoach/internal/execproc"
)

// execGenerator hands each request to a local program. The program reads
// {"model","system","prompt","max_tokens","temperature"} and writes one or
// more {"content"} lines, each forwarded as a chunk.
type execGenerator struct {
	cmd *execproc.Command
}

type execRequest struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type execLine struct {
	Content string `json:"content"`
}

func NewExecGenerator(command string) (Generator, error) {
	cmd, err := execproc.Parse("llm", command)
	if err != nil {
		return nil, err
	}
	return &execGenerator{cmd: cmd}, nil
}

func (g *execGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	start := time.Now()
	return g.cmd.Run(ctx, execRequest{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, func(raw []byte) error {
		var line execLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("decode llm output: %w", err)
		}
		if line.Content == "" {
			return nil
		}
		return consumer(Chunk{Content: line.Content, Partial: true, Latency: time.Since(start)})
	})
}
