package generator

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	"aoai-simulated-api/internal/sim"
	"aoai-simulated-api/internal/tokens"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// operationTTL bounds how long a submitted analyze operation can be polled.
const operationTTL = 30 * time.Minute

var (
	analyzePath       = regexp.MustCompile(`^/formrecognizer/documentModels/([^/:]+):analyze$`)
	analyzeResultPath = regexp.MustCompile(`^/formrecognizer/documentModels/([^/:]+)/analyzeResults/([^/]+)$`)
)

type analyzeOperation struct {
	modelID     string
	submittedAt time.Time
	contentSize int
}

// DocIntelligenceGenerator simulates the Document Intelligence analyze
// API: submission returns 202 with an Operation-Location, polling the
// operation returns a synthesized succeeded result.
type DocIntelligenceGenerator struct {
	logger  zerolog.Logger
	clock   clock.Clock
	latency Latency
	rnd     *lockedRand

	mu         sync.Mutex
	operations map[string]analyzeOperation
}

func NewDocIntelligenceGenerator(logger zerolog.Logger, clk clock.Clock, latency Latency) *DocIntelligenceGenerator {
	return &DocIntelligenceGenerator{
		logger:     logger.With().Str("generator", "docintelligence").Logger(),
		clock:      clk,
		latency:    latency,
		rnd:        newLockedRand(time.Now().UnixNano()),
		operations: make(map[string]analyzeOperation),
	}
}

func (g *DocIntelligenceGenerator) Name() string {
	return "docintelligence"
}

func (g *DocIntelligenceGenerator) Generate(rctx *sim.RequestContext) (*sim.Response, error) {
	path := rctx.Request.URL.Path

	if rctx.Request.Method == http.MethodPost && analyzePath.MatchString(path) {
		return g.submit(rctx, analyzePath.FindStringSubmatch(path)[1])
	}

	if rctx.Request.Method == http.MethodGet && analyzeResultPath.MatchString(path) {
		match := analyzeResultPath.FindStringSubmatch(path)
		return g.result(rctx, match[1], match[2])
	}

	return nil, nil
}

func (g *DocIntelligenceGenerator) submit(rctx *sim.RequestContext, modelID string) (*sim.Response, error) {
	rctx.Limiter = sim.LimiterDocIntelligence
	rctx.TargetDuration = g.rnd.latency(g.latency)

	body, err := io.ReadAll(rctx.Request.Body)
	if err != nil {
		return sim.NewErrorResponse(http.StatusBadRequest, "400", "Failed to read request body"), nil
	}

	operationID := uuid.New().String()

	g.mu.Lock()
	g.pruneExpired()
	g.operations[operationID] = analyzeOperation{
		modelID:     modelID,
		submittedAt: g.clock.Now(),
		contentSize: len(body),
	}
	g.mu.Unlock()

	g.logger.Debug().Str("model", modelID).Str("operation", operationID).Msg("analyze operation submitted")

	resp, err := sim.NewJSONResponse(http.StatusAccepted, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	location := fmt.Sprintf(
		"http://%s/formrecognizer/documentModels/%s/analyzeResults/%s?api-version=%s",
		rctx.Request.Host, modelID, operationID, rctx.Request.URL.Query().Get("api-version"),
	)
	resp.Header.Set("Operation-Location", location)

	return resp, nil
}

func (g *DocIntelligenceGenerator) result(rctx *sim.RequestContext, modelID string, operationID string) (*sim.Response, error) {
	rctx.Limiter = sim.LimiterDocIntelligence

	g.mu.Lock()
	g.pruneExpired()
	op, found := g.operations[operationID]
	g.mu.Unlock()

	if !found || op.modelID != modelID {
		return sim.NewErrorResponse(http.StatusNotFound, "NotFound", "Analyze operation result not found."), nil
	}

	// Content length scales with the submitted document size.
	contentTokens := tokens.CompletionSize(defaultCompletionTokens, op.contentSize/8)
	content := g.rnd.text(contentTokens)

	rctx.PromptTokens = tokens.Estimate(content)

	return sim.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"status":              "succeeded",
		"createdDateTime":     op.submittedAt.UTC().Format(time.RFC3339),
		"lastUpdatedDateTime": g.clock.Now().UTC().Format(time.RFC3339),
		"analyzeResult": map[string]interface{}{
			"apiVersion": rctx.Request.URL.Query().Get("api-version"),
			"modelId":    modelID,
			"content":    content,
			"pages":      []interface{}{},
		},
	})
}

// pruneExpired drops operations past their TTL. Callers hold g.mu.
func (g *DocIntelligenceGenerator) pruneExpired() {
	cutoff := g.clock.Now().Add(-operationTTL)
	for id, op := range g.operations {
		if op.submittedAt.Before(cutoff) {
			delete(g.operations, id)
		}
	}
}
