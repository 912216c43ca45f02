package relay

import (
	"net/http"

	"github.com/loqalabs/musclecoach/internal/catalog"
	"github.com/loqalabs/musclecoach/internal/llm"
)

type modelsResponse struct {
	Models   []string `json:"models"`
	Selected string   `json:"selected"`
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, "models")
	if h.llmKeyMissing() {
		h.fail(w, r, c, configError(msgMissingLLMKey))
		return
	}
	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	ctx, end := h.metrics.span(ctx, h.cfg.LLM.Mode, "list_models")
	models, err := h.models.Models(ctx)
	end(err)
	if err != nil {
		h.fail(w, r, c, modelListError(err))
		return
	}
	// An empty catalog is reported as such rather than as a failure.
	selected, _ := llm.SelectModel(models, h.cfg.LLM.PreferredModels)
	if models == nil {
		models = []string{}
	}
	c.model = selected
	h.writeJSON(w, http.StatusOK, modelsResponse{Models: models, Selected: selected})
	h.finish(r.Context(), c, http.StatusOK, nil)
}

func (h *Handler) handleMuscles(w http.ResponseWriter, r *http.Request) {
	muscles := []catalog.Muscle{}
	if h.muscles != nil {
		muscles = h.muscles.List()
	}
	h.writeJSON(w, http.StatusOK, muscles)
}

func (h *Handler) handleMuscle(w http.ResponseWriter, r *http.Request) {
	if h.muscles != nil {
		if m, ok := h.muscles.Get(r.PathValue("key")); ok {
			h.writeJSON(w, http.StatusOK, m)
			return
		}
	}
	h.writeError(w, &Error{Kind: KindInput, Status: http.StatusNotFound, Message: "Unknown muscle"})
}
