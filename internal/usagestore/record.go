package usagestore

import (
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/google/uuid"
)

// UsageRecord captures one simulated request for later analysis,
// typically correlating load-test client data with simulator behavior.
type UsageRecord struct {
	ID string `dynamodbav:"Id"`

	Method string `dynamodbav:"Method"`
	Path   string `dynamodbav:"Path"`

	Deployment string `dynamodbav:"Deployment"`
	StatusCode int    `dynamodbav:"StatusCode"`

	PromptTokens     int `dynamodbav:"PromptTokens"`
	CompletionTokens int `dynamodbav:"CompletionTokens"`

	LatencyMS int64 `dynamodbav:"LatencyMs"`

	CreatedAt time.Time `dynamodbav:"CreatedAt"`
}

func New(rctx *sim.RequestContext, statusCode int, latency time.Duration) *UsageRecord {
	return &UsageRecord{
		ID:               uuid.New().String(),
		Method:           rctx.Request.Method,
		Path:             rctx.Request.URL.Path,
		Deployment:       rctx.Deployment,
		StatusCode:       statusCode,
		PromptTokens:     rctx.PromptTokens,
		CompletionTokens: rctx.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
}
