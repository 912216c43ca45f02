package relay

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/loqalabs/musclecoach/internal/cache"
	"github.com/loqalabs/musclecoach/internal/llm"
)

const (
	endpointMuscleInfo     = "muscle-info"
	endpointWorkoutSummary = "muscle-workout-summary"
	endpointFormCues       = "stream-gemini-form-cues"
)

type summaryRequest struct {
	MuscleNames []string `json:"muscleNames"`
}

type cueRequest struct {
	Input string `json:"input"`
}

func (h *Handler) handleMuscleInfo(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, endpointMuscleInfo, muscleInfoSystem)
}

func (h *Handler) handleWorkoutSummary(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, endpointWorkoutSummary, workoutSummarySystem)
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request, endpoint, system string) {
	c := h.begin(r, endpoint)
	var body summaryRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, c, err)
		return
	}
	names := make([]string, 0, len(body.MuscleNames))
	for _, n := range body.MuscleNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		h.fail(w, r, c, inputError("muscleNames must not be empty"))
		return
	}
	if h.llmKeyMissing() {
		h.fail(w, r, c, configError(msgMissingLLMKey))
		return
	}
	c.model = h.cfg.LLM.SummaryModel

	if buffered(r) {
		h.bufferedSummary(w, r, c, system, names)
		return
	}
	h.streamText(w, r, c, h.textRequest(c, h.cfg.LLM.SummaryModel, system, musclePrompt(names)))
}

// bufferedSummary answers with exactly one line per requested name, in
// request order. The upstream prompt uses the normalized name set so
// equivalent requests share a cache entry.
func (h *Handler) bufferedSummary(w http.ResponseWriter, r *http.Request, c *call, system string, names []string) {
	normalized := cache.Normalize(names)
	fill := func(ctx context.Context) (map[string]string, error) {
		reply, err := h.complete(ctx, h.textRequest(c, h.cfg.LLM.SummaryModel, system, musclePrompt(normalized)))
		if err != nil {
			return nil, err
		}
		return alignSummaries(normalized, reply), nil
	}

	ctx, cancel := h.upstreamContext(r)
	defer cancel()
	var (
		byName map[string]string
		err    error
	)
	if h.summaries != nil {
		byName, c.cached, err = h.summaries.Get(ctx, cache.Fingerprint(c.endpoint, names), fill)
	} else {
		byName, err = fill(ctx)
	}
	if err != nil {
		h.fail(w, r, c, generationError(err))
		return
	}
	h.writeText(w, orderedSummary(names, byName))
	h.finish(r.Context(), c, http.StatusOK, nil)
}

func (h *Handler) handleFormCues(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, endpointFormCues)
	var body cueRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, c, err)
		return
	}
	input := strings.TrimSpace(body.Input)
	if input == "" {
		h.fail(w, r, c, inputError("input must not be empty"))
		return
	}
	if h.llmKeyMissing() {
		h.fail(w, r, c, configError(msgMissingLLMKey))
		return
	}
	c.model = h.cfg.LLM.CueModel
	req := h.textRequest(c, h.cfg.LLM.CueModel, "", cuePrompt(input))

	if buffered(r) {
		ctx, cancel := h.upstreamContext(r)
		defer cancel()
		text, err := h.complete(ctx, req)
		if err != nil {
			h.fail(w, r, c, generationError(err))
			return
		}
		h.writeText(w, text)
		h.finish(r.Context(), c, http.StatusOK, nil)
		return
	}
	h.streamText(w, r, c, req)
}

// streamText relays a generation fragment by fragment.
func (h *Handler) streamText(w http.ResponseWriter, r *http.Request, c *call, req llm.Request) {
	ctx, cancel := h.upstreamContext(r)
	defer cancel()
	ctx, end := h.metrics.span(ctx, h.cfg.LLM.Mode, "generate")
	stream := newTextStream(w)
	err := h.gen.Generate(ctx, req, stream.write)
	end(err)
	if err != nil {
		if !stream.committed {
			h.fail(w, r, c, generationError(err))
			return
		}
		c.logger.Warn("stream truncated", slog.Int("bytes_sent", stream.bytes), slogError(err))
		h.finish(r.Context(), c, http.StatusOK, err)
		return
	}
	stream.close()
	h.finish(r.Context(), c, http.StatusOK, nil)
}

// complete runs a buffered generation.
func (h *Handler) complete(ctx context.Context, req llm.Request) (string, error) {
	ctx, end := h.metrics.span(ctx, h.cfg.LLM.Mode, "generate")
	text, err := llm.Complete(ctx, h.gen, req)
	end(err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (h *Handler) textRequest(c *call, model, system, prompt string) llm.Request {
	req := llm.OptionsFromConfig(h.cfg.LLM, model)
	req.System = system
	req.Prompt = prompt
	req.RequestID = c.requestID
	return req
}

func (h *Handler) writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// buffered reports whether the caller asked for a single response body
// instead of a stream.
func buffered(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("stream")) {
	case "false", "0", "no":
		return true
	}
	return false
}
