package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMockStreamingMatchesComplete(t *testing.T) {
	gen := NewMockGenerator()
	req := Request{Prompt: "Muscles:\nChest\nBiceps"}

	var chunks []string
	err := gen.Generate(context.Background(), req, func(c Chunk) error {
		chunks = append(chunks, c.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	full, err := Complete(context.Background(), gen, req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if strings.Join(chunks, "") != full {
		t.Fatalf("stream %q does not match buffered %q", strings.Join(chunks, ""), full)
	}
	lines := strings.Split(full, "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "Chest") || !strings.Contains(lines[1], "Biceps") {
		t.Fatalf("expected one line per muscle, got %q", full)
	}
}

func TestMockHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Complete(ctx, NewMockGenerator(), Request{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOllamaStreamsChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintln(w, `{"response":"Keep ","done":false}`)
		fmt.Fprintln(w, `{"response":"your back ","done":false}`)
		fmt.Fprintln(w, `{"response":"flat.","done":true}`)
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(srv.URL, "llama3.2")
	var got []string
	err := gen.Generate(context.Background(), Request{Prompt: "bench"}, func(c Chunk) error {
		got = append(got, c.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Join(got, "|") != "Keep |your back |flat." {
		t.Fatalf("unexpected chunks %v", got)
	}
}

func TestOllamaRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewOllamaGenerator(srv.URL, ""), Request{Prompt: "x"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest"},{"name":"qwen2.5:7b"}]}`)
	}))
	defer srv.Close()

	models, err := NewOllamaGenerator(srv.URL, "").(ModelLister).ListModels(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 2 || models[1] != "qwen2.5:7b" {
		t.Fatalf("unexpected models %v", models)
	}
}

func TestGeminiWithoutKey(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), "", "gemini-2.5-flash-lite")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if _, err := Complete(context.Background(), gen, Request{Prompt: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := gen.ListModels(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey from listing, got %v", err)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Drive "), genai.Text("through heels.")}},
		}},
	}
	if got := responseText(resp); got != "Drive through heels." {
		t.Fatalf("unexpected text %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestClassifyGeminiError(t *testing.T) {
	if err := classifyGeminiError(status.Error(codes.ResourceExhausted, "quota")); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected grpc quota to be rate limited, got %v", err)
	}
	if err := classifyGeminiError(&googleapi.Error{Code: http.StatusTooManyRequests}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected http 429 to be rate limited, got %v", err)
	}
	plain := errors.New("bad request")
	if err := classifyGeminiError(plain); errors.Is(err, ErrRateLimited) {
		t.Fatalf("unexpected rate limit classification for %v", err)
	}
}

func TestExecGeneratorStreamsLines(t *testing.T) {
	gen, err := NewExecGenerator(`sh -c 'cat >/dev/null; echo "{\"content\":\"Brace \"}"; echo; echo "{\"content\":\"your core.\"}"'`)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	got, err := Complete(context.Background(), gen, Request{Prompt: "plank"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "Brace your core." {
		t.Fatalf("unexpected completion %q", got)
	}
}

func TestExecGeneratorRejectsGarbage(t *testing.T) {
	gen, err := NewExecGenerator(`sh -c 'cat >/dev/null; echo not-json'`)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if _, err := Complete(context.Background(), gen, Request{Prompt: "plank"}); err == nil {
		t.Fatal("expected decode error")
	}
}
