package relay

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/loqalabs/musclecoach/internal/tts"
	"golang.org/x/sync/errgroup"
)

const (
	endpointSpeech       = "muscle-workout-tts"
	endpointPoseFeedback = "rehab-feedback"
)

type speechRequest struct {
	Text       string       `json:"text"`
	MuscleName string       `json:"muscleName"`
	Workouts   []WorkoutCue `json:"workouts"`
}

type speechResponse struct {
	Base64Audio string `json:"base64Audio"`
}

func (h *Handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, endpointSpeech)
	// Configuration is checked before the body so a missing key never costs
	// an outbound call.
	if h.ttsKeyMissing() {
		h.fail(w, r, c, configError(msgMissingTTSKey))
		return
	}
	var body speechRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, c, err)
		return
	}
	muscle := strings.TrimSpace(body.MuscleName)
	text := strings.TrimSpace(body.Text)
	if text == "" && muscle == "" {
		h.fail(w, r, c, inputError("text or muscleName is required"))
		return
	}

	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	if text == "" {
		workouts := make([]WorkoutCue, 0, len(body.Workouts))
		for _, wk := range body.Workouts {
			if wk.Name = strings.TrimSpace(wk.Name); wk.Name != "" {
				workouts = append(workouts, wk)
			}
		}
		if needsCues(workouts) && h.llmKeyMissing() {
			h.fail(w, r, c, configError(msgMissingLLMKey))
			return
		}
		filled, err := h.generateCues(ctx, c, workouts)
		if err != nil {
			h.fail(w, r, c, generationError(err))
			return
		}
		text = speechText(muscle, filled)
	}

	audio, err := h.speak(ctx, c, text)
	if err != nil {
		h.fail(w, r, c, synthesisError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, speechResponse{Base64Audio: audio})
	h.finish(r.Context(), c, http.StatusOK, nil)
}

func needsCues(workouts []WorkoutCue) bool {
	for _, w := range workouts {
		if strings.TrimSpace(w.Cues) == "" {
			return true
		}
	}
	return false
}

// generateCues fills every workout lacking cues with a generated one. Calls
// run concurrently, bounded by relay.cue_concurrency; results keep the input
// order. The first failure cancels the rest.
func (h *Handler) generateCues(ctx context.Context, c *call, workouts []WorkoutCue) ([]WorkoutCue, error) {
	out := make([]WorkoutCue, len(workouts))
	copy(out, workouts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(h.cfg.Relay.CueConcurrency, 1))
	for i := range out {
		if strings.TrimSpace(out[i].Cues) != "" {
			continue
		}
		g.Go(func() error {
			cue, err := h.complete(gctx, h.textRequest(c, h.cfg.LLM.CueModel, "", cuePrompt(out[i].Name)))
			if err != nil {
				return err
			}
			out[i].Cues = cue
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// speak synthesizes text with the configured voice and returns standard
// base64 audio.
func (h *Handler) speak(ctx context.Context, c *call, text string) (string, error) {
	ctx, end := h.metrics.span(ctx, h.cfg.TTS.Mode, "synthesize")
	audio, err := tts.Collect(ctx, h.synth, tts.SynthRequest{
		RequestID: c.requestID,
		Text:      text,
		Voice:     tts.VoiceFromConfig(h.cfg.TTS),
	})
	end(err)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(audio.Data), nil
}
