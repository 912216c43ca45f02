package relay

import (
	"net/http"
)

type poseRequest struct {
	Keypoints []Keypoint `json:"keypoints"`
}

type poseResponse struct {
	Feedback    string `json:"feedback"`
	Base64Audio string `json:"base64Audio"`
}

// handlePoseFeedback turns one pose snapshot into spoken coaching: select a
// model, generate a critique, synthesize it.
func (h *Handler) handlePoseFeedback(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, endpointPoseFeedback)
	var body poseRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, c, err)
		return
	}
	if len(body.Keypoints) == 0 || h.ttsKeyMissing() {
		h.fail(w, r, c, inputError(msgMissingKeypoints))
		return
	}
	if h.llmKeyMissing() {
		h.fail(w, r, c, configError(msgMissingLLMKey))
		return
	}

	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	listCtx, end := h.metrics.span(ctx, h.cfg.LLM.Mode, "list_models")
	model, err := h.models.Select(listCtx)
	end(err)
	if err != nil {
		h.fail(w, r, c, modelListError(err))
		return
	}
	c.model = model

	feedback, err := h.complete(ctx, h.textRequest(c, model, "", posePrompt(body.Keypoints)))
	if err != nil {
		h.fail(w, r, c, generationError(err))
		return
	}

	audio, err := h.speak(ctx, c, feedback)
	if err != nil {
		h.fail(w, r, c, synthesisError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, poseResponse{Feedback: feedback, Base64Audio: audio})
	h.finish(r.Context(), c, http.StatusOK, nil)
}
