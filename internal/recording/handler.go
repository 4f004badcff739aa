package recording

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var openaiDeploymentPath = regexp.MustCompile(`^/openai/deployments/([^/]+)/`)

// Handler serves requests in record and replay modes.
type Handler struct {
	logger    zerolog.Logger
	mode      sim.Mode
	store     *Store
	persister *Persister
	forwarder *Forwarder
	autosave  bool
}

func NewHandler(logger zerolog.Logger, mode sim.Mode, store *Store, persister *Persister, forwarder *Forwarder, autosave bool) *Handler {
	return &Handler{
		logger:    logger.With().Str("component", "record_replay").Logger(),
		mode:      mode,
		store:     store,
		persister: persister,
		forwarder: forwarder,
		autosave:  autosave,
	}
}

// HandleRequest produces a response either by forwarding and recording
// (record mode) or by looking up a previous recording (replay mode).
func (h *Handler) HandleRequest(rctx *sim.RequestContext) (*sim.Response, error) {
	body, err := io.ReadAll(rctx.Request.Body)
	if err != nil {
		return nil, errors.Wrap(err, "request body read failed")
	}

	pathWithQuery := rctx.Request.URL.Path
	if rctx.Request.URL.RawQuery != "" {
		pathWithQuery += "?" + rctx.Request.URL.RawQuery
	}

	switch h.mode {
	case sim.ModeRecord:
		return h.record(rctx, pathWithQuery, body)

	case sim.ModeReplay:
		return h.replay(rctx, pathWithQuery, body)

	default:
		return nil, errors.Errorf("mode %s does not use recordings", h.mode)
	}
}

func (h *Handler) record(rctx *sim.RequestContext, pathWithQuery string, body []byte) (*sim.Response, error) {
	resp, duration, err := h.forwarder.Forward(rctx.Request.Context(), rctx.Request, body)
	if errors.Is(err, ErrNoForwarder) {
		h.logger.Warn().Str("path", rctx.Request.URL.Path).Msg("no upstream configured")
		return sim.NewErrorResponse(http.StatusNotFound, "404", "No upstream is configured for this path."), nil
	}
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	h.store.Add(Interaction{
		Method:      rctx.Request.Method,
		Path:        pathWithQuery,
		RequestHash: HashRequestBody(body),
		StatusCode:  resp.StatusCode,
		Headers:     headers,
		Body:        string(resp.Body),
		DurationMS:  duration.Milliseconds(),
	})

	if h.autosave {
		err = h.persister.Save(pathWithQuery, h.store.Get(pathWithQuery))
		if err != nil {
			h.logger.Error().Err(err).Str("path", pathWithQuery).Msg("autosave failed")
		}
	}

	rctx.TargetDuration = duration
	h.annotate(rctx, resp.Body)

	return resp, nil
}

func (h *Handler) replay(rctx *sim.RequestContext, pathWithQuery string, body []byte) (*sim.Response, error) {
	interaction, found := h.store.Find(rctx.Request.Method, pathWithQuery, HashRequestBody(body))
	if !found {
		h.logger.Warn().Str("method", rctx.Request.Method).Str("path", pathWithQuery).Msg("no recording matches the request")
		return sim.NewErrorResponse(http.StatusNotFound, "404", "No recording matches the request."), nil
	}

	header := make(http.Header, len(interaction.Headers))
	for key, value := range interaction.Headers {
		header.Set(key, value)
	}

	rctx.TargetDuration = time.Duration(interaction.DurationMS) * time.Millisecond
	h.annotate(rctx, []byte(interaction.Body))

	return &sim.Response{
		StatusCode: interaction.StatusCode,
		Header:     header,
		Body:       []byte(interaction.Body),
	}, nil
}

// SaveRecordings flushes the in-memory store to disk.
func (h *Handler) SaveRecordings() error {
	return h.persister.SaveAll(h.store)
}

// annotate derives limiter routing and token usage from the request path
// and the (forwarded or replayed) response body, so that rate limiting
// and metrics behave the same way they do in generate mode.
func (h *Handler) annotate(rctx *sim.RequestContext, responseBody []byte) {
	path := rctx.Request.URL.Path

	switch {
	case openaiDeploymentPath.MatchString(path):
		rctx.Deployment = openaiDeploymentPath.FindStringSubmatch(path)[1]
		rctx.Limiter = sim.LimiterOpenAI

		var parsed struct {
			Usage struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(responseBody, &parsed); err == nil {
			rctx.PromptTokens = parsed.Usage.PromptTokens
			rctx.CompletionTokens = parsed.Usage.CompletionTokens
		}

	case strings.HasPrefix(path, "/formrecognizer/"):
		rctx.Limiter = sim.LimiterDocIntelligence
	}
}
