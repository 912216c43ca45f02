package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/loqalabs/musclecoach/internal/llm"
	"github.com/loqalabs/musclecoach/internal/tts"
)

// Kind classifies a relay failure.
type Kind string

const (
	KindConfig      Kind = "config"
	KindInput       Kind = "input"
	KindUpstream    Kind = "upstream"
	KindPayload     Kind = "payload"
	KindRateLimited Kind = "rate_limited"
)

const (
	msgMissingTTSKey    = "Missing Google TTS API key"
	msgMissingLLMKey    = "Missing Google Generative AI API key"
	msgNoAudio          = "No audio content returned"
	msgListModels       = "Failed to list models"
	msgNoModels         = "No Gemini models available."
	msgMissingKeypoints = "Missing keypoints or TTS key"
	msgRateLimited      = "Rate limited by text generation provider"
	msgTimeout          = "Upstream request timed out"
)

// Error is the single failure shape every endpoint reports. It is rendered as
// {"error": Message, "details": Details}.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func inputError(msg string) *Error {
	return &Error{Kind: KindInput, Status: http.StatusBadRequest, Message: msg}
}

func configError(msg string) *Error {
	return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: msg}
}

// generationError classifies a text-generation failure.
func generationError(err error) *Error {
	var relayErr *Error
	switch {
	case errors.As(err, &relayErr):
		return relayErr
	case errors.Is(err, llm.ErrRateLimited):
		return &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: msgRateLimited, Err: err}
	case errors.Is(err, llm.ErrMissingAPIKey):
		return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: msgMissingLLMKey, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstream, Status: http.StatusGatewayTimeout, Message: msgTimeout, Err: err}
	default:
		return &Error{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}
}

// synthesisError classifies a speech failure. Provider bodies are forwarded
// verbatim.
func synthesisError(err error) *Error {
	var (
		relayErr *Error
		upstream *tts.UpstreamError
	)
	switch {
	case errors.As(err, &relayErr):
		return relayErr
	case errors.Is(err, tts.ErrMissingAPIKey):
		return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: msgMissingTTSKey, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstream, Status: http.StatusGatewayTimeout, Message: msgTimeout, Err: err}
	case errors.Is(err, tts.ErrNoAudio):
		return &Error{Kind: KindPayload, Status: http.StatusInternalServerError, Message: msgNoAudio, Err: err}
	case errors.As(err, &upstream):
		msg := upstream.Body
		if msg == "" {
			msg = http.StatusText(upstream.StatusCode)
		}
		return &Error{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: msg, Err: err}
	default:
		return &Error{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}
}

// modelListError reports a failed model discovery.
func modelListError(err error) *Error {
	if errors.Is(err, llm.ErrNoModels) {
		return &Error{Kind: KindPayload, Status: http.StatusInternalServerError, Message: msgNoModels, Err: err}
	}
	if errors.Is(err, llm.ErrRateLimited) {
		return generationError(err)
	}
	return &Error{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: msgListModels, Details: err.Error(), Err: err}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError renders e. It must run before any body bytes are written.
func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	if e.Kind == KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(h.cfg.Relay.RetryAfterSecs))
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: e.Message, Details: e.Details})
}

// clientGone reports whether the caller disconnected, in which case there is
// nobody left to answer.
func clientGone(r *http.Request) bool {
	return r.Context().Err() != nil
}
