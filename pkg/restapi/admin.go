package restapi

import (
	"net/http"

	"aoai-simulated-api/internal/sim"
	"aoai-simulated-api/internal/usagestore"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

// adminHandler owns the simulator's own endpoints, as opposed to the
// impersonated API surface.
type adminHandler struct {
	mode      sim.Mode
	saver     RecordingSaver
	usageRepo usagestore.Repository
}

func newAdminHandler(mode sim.Mode, saver RecordingSaver, usageRepo usagestore.Repository) *adminHandler {
	return &adminHandler{
		mode:      mode,
		saver:     saver,
		usageRepo: usageRepo,
	}
}

func (h *adminHandler) handle(r chi.Router) {
	r.Post("/save-recordings", h.saveRecordings)
	r.Get("/usage/{id}", h.getUsage)
}

func (h *adminHandler) saveRecordings(w http.ResponseWriter, _ *http.Request) {
	if h.mode != sim.ModeRecord {
		writeError(w, "not saving recordings as not in record mode", http.StatusBadRequest)
		return
	}

	zlog.Info().Msg("saving recordings...")

	err := h.saver.SaveRecordings()
	if err != nil {
		zlog.Error().Err(err).Msg("recordings cannot be saved")
		writeError(w, "internal error", http.StatusInternalServerError)

		return
	}

	zlog.Info().Msg("recordings saved")

	writeResult(w, "recordings saved")
}

type GetUsageOutput struct {
	ID               string `json:"id"`
	Method           string `json:"method"`
	Path             string `json:"path"`
	Deployment       string `json:"deployment,omitempty"`
	StatusCode       int    `json:"status_code"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	LatencyMS        int64  `json:"latency_ms"`
}

func (h *adminHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, "missed id", http.StatusBadRequest)
		return
	}

	record, err := h.usageRepo.Get(id)
	if errors.Is(err, usagestore.ErrNotFound) {
		writeError(w, "usage record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		zlog.Error().Err(err).Str("id", id).Msg("failed to find a usage record")
		writeError(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeResult(w, GetUsageOutput{
		ID:               record.ID,
		Method:           record.Method,
		Path:             record.Path,
		Deployment:       record.Deployment,
		StatusCode:       record.StatusCode,
		PromptTokens:     record.PromptTokens,
		CompletionTokens: record.CompletionTokens,
		LatencyMS:        record.LatencyMS,
	})
}
