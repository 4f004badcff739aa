package sim

import (
	"net/http"
	"time"
)

// Limiter names known to the pipeline.
const (
	LimiterOpenAI          = "openai"
	LimiterDocIntelligence = "docintelligence"
)

// RequestContext travels through the simulation pipeline.
// Generators and the record/replay handler populate it; the router's
// catchall consumes it to apply limits, latency and metrics.
type RequestContext struct {
	Request *http.Request

	// Deployment is the OpenAI deployment name extracted from the path.
	Deployment string

	// Limiter names the rate limiter that should be consulted for
	// the produced response. Empty means no limiting.
	Limiter string

	// PromptTokens and CompletionTokens describe simulated token usage.
	PromptTokens     int
	CompletionTokens int

	// TargetDuration is how long the request should appear to take.
	// The pipeline sleeps for the remainder after the base handling time.
	TargetDuration time.Duration
}

// TotalTokens is the usage total reported to limiters and metrics.
func (c *RequestContext) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

func NewRequestContext(r *http.Request) *RequestContext {
	return &RequestContext{Request: r}
}
