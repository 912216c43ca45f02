package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/loqalabs/musclecoach/internal/config"
	"google.golang.org/api/option"
)

type geminiCall struct {
	path string
	body map[string]any
}

// fakeGemini serves the REST surface the genai client uses.
func fakeGemini(t *testing.T, stream http.HandlerFunc) (*GeminiGenerator, func() []geminiCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []geminiCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := geminiCall{path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &call.body)
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1beta/models":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"models":[{"name":"models/gemini-1.5-pro"},{"name":"models/gemini-2.5-flash"}]}`)
		case strings.HasSuffix(r.URL.Path, ":streamGenerateContent"):
			stream(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	gen, err := NewGeminiGenerator(context.Background(), "test-key", "gemini-2.5-flash-lite",
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	t.Cleanup(func() { _ = gen.Close() })
	return gen, func() []geminiCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]geminiCall(nil), calls...)
	}
}

func streamReply(parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		msgs := make([]string, len(parts))
		for i, p := range parts {
			text, _ := json.Marshal(p)
			msgs[i] = `{"candidates":[{"content":{"role":"model","parts":[{"text":` + string(text) + `}]}}]}`
		}
		_, _ = io.WriteString(w, "["+strings.Join(msgs, ",\n")+"]")
	}
}

func TestGeminiStreamsChunksInOrder(t *testing.T) {
	gen, calls := fakeGemini(t, streamReply("Chest: pushes. ", "Biceps: ", "flexes the elbow."))

	var chunks []string
	err := gen.Generate(context.Background(), Request{
		Model:       "models/gemini-2.5-pro",
		System:      "One sentence per muscle.",
		Prompt:      "Muscles:\nchest\nbiceps",
		MaxTokens:   256,
		Temperature: 0.5,
	}, func(c Chunk) error {
		chunks = append(chunks, c.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := strings.Join(chunks, "|"); got != "Chest: pushes. |Biceps: |flexes the elbow." {
		t.Fatalf("unexpected chunks %q", got)
	}

	recorded := calls()
	if len(recorded) != 1 || recorded[0].path != "/v1beta/models/gemini-2.5-pro:streamGenerateContent" {
		t.Fatalf("unexpected upstream calls %+v", recorded)
	}
	body, _ := json.Marshal(recorded[0].body)
	for _, want := range []string{"One sentence per muscle.", `Muscles:\nchest\nbiceps`, `"maxOutputTokens":256`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("request %s missing %s", body, want)
		}
	}
}

func TestGeminiUsesDefaultModel(t *testing.T) {
	gen, calls := fakeGemini(t, streamReply("ok"))
	if _, err := Complete(context.Background(), gen, Request{Prompt: "plank"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := calls()[0].path; got != "/v1beta/models/gemini-2.5-flash-lite:streamGenerateContent" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestGeminiOmitsOutputCapByDefault(t *testing.T) {
	gen, calls := fakeGemini(t, streamReply("ok"))
	req := OptionsFromConfig(config.Default().LLM, "gemini-2.5-pro")
	req.Prompt = "Here is the observed pose"
	if _, err := Complete(context.Background(), gen, req); err != nil {
		t.Fatalf("complete: %v", err)
	}
	body, _ := json.Marshal(calls()[0].body)
	if strings.Contains(string(body), "maxOutputTokens") {
		t.Fatalf("expected no output cap, got %s", body)
	}
}

func TestGeminiStopsOnConsumerError(t *testing.T) {
	gen, _ := fakeGemini(t, streamReply("one", "two", "three"))
	stop := errors.New("client gone")
	var seen int
	err := gen.Generate(context.Background(), Request{Prompt: "x"}, func(Chunk) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Fatalf("expected stop after first chunk, got err=%v seen=%d", err, seen)
	}
}

func TestGeminiRateLimit(t *testing.T) {
	gen, _ := fakeGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	})
	_, err := Complete(context.Background(), gen, Request{Prompt: "x"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGeminiListModels(t *testing.T) {
	gen, calls := fakeGemini(t, streamReply())
	models, err := gen.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(models, ",") != "models/gemini-1.5-pro,models/gemini-2.5-flash" {
		t.Fatalf("unexpected models %v", models)
	}
	if calls()[0].path != "/v1beta/models" {
		t.Fatalf("unexpected path %q", calls()[0].path)
	}
	selected, err := SelectModel(models, []string{"gemini-2.5-pro", "gemini-2.5-flash"})
	if err != nil || selected != "gemini-2.5-flash" {
		t.Fatalf("unexpected selection %q (%v)", selected, err)
	}
}
