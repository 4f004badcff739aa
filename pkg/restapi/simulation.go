package restapi

import (
	"net/http"
	"time"

	"aoai-simulated-api/internal/limiter"
	"aoai-simulated-api/internal/metrics"
	"aoai-simulated-api/internal/sim"
	"aoai-simulated-api/internal/usagestore"

	"github.com/rs/zerolog"
)

// simulationHandler is the catchall pipeline: produce a response
// (generate or record/replay), apply rate limits, inject latency,
// then account metrics and usage.
type simulationHandler struct {
	logger    zerolog.Logger
	source    ResponseSource
	limiters  limiter.Registry
	usageRepo usagestore.Repository
}

func newSimulationHandler(logger zerolog.Logger, source ResponseSource, limiters limiter.Registry, usageRepo usagestore.Repository) *simulationHandler {
	return &simulationHandler{
		logger:    logger.With().Str("component", "simulation").Logger(),
		source:    source,
		limiters:  limiters,
		usageRepo: usageRepo,
	}
}

func (h *simulationHandler) handle(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()

	rctx := sim.NewRequestContext(r)

	resp, err := h.source.HandleRequest(rctx)
	if err != nil {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request handling failed")
		sim.NewErrorResponse(http.StatusInternalServerError, "500", "The simulator failed to produce a response.").Write(w)

		return
	}

	// Limits apply to record/replay as well as generate, so recorded
	// sessions can be replayed against realistic quotas.
	if lim, found := h.limiters[rctx.Limiter]; found {
		if limited := lim.Limit(rctx); limited != nil {
			resp = limited
		}
	}

	base := time.Since(startedAt)

	h.injectLatency(r, rctx, resp, base)

	full := time.Since(startedAt)

	metrics.Simulator.RequestHandled(rctx.Deployment, resp.StatusCode, rctx.TotalTokens(), base, full)

	record := usagestore.New(rctx, resp.StatusCode, full)
	err = h.usageRepo.Create(record)
	if err != nil {
		h.logger.Error().Err(err).Str("id", record.ID).Msg("usage record cannot be saved")
	} else {
		resp.Header.Set("x-simulator-usage-id", record.ID)
	}

	resp.Write(w)
}

// injectLatency delays successful responses until the target duration
// has passed, so clients observe realistic timing. The sleep is cut
// short when the client goes away.
func (h *simulationHandler) injectLatency(r *http.Request, rctx *sim.RequestContext, resp *sim.Response, base time.Duration) {
	if resp.StatusCode >= 300 {
		return
	}

	remaining := rctx.TargetDuration - base
	if remaining <= 0 {
		return
	}

	t := time.NewTimer(remaining)
	defer t.Stop()

	select {
	case <-t.C:
	case <-r.Context().Done():
	}
}
