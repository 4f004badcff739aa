package limiter

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// quotaWindow is the interval the upstream service accounts quotas over.
const quotaWindow = 10 * time.Second

// Limiter decides whether a simulated response should be replaced
// with a throttling response. Nil means the request is allowed.
type Limiter interface {
	Limit(rctx *sim.RequestContext) *sim.Response
}

type deploymentQuota struct {
	tokensPer10s   int64
	requestsPer10s int64
}

// OpenAILimiter enforces per-deployment token and request quotas derived
// from the configured tokens-per-minute limits.
type OpenAILimiter struct {
	logger zerolog.Logger
	window *fixedWindow
	quotas map[string]deploymentQuota
}

// NewOpenAILimiter derives 10-second quotas from tokens-per-minute values.
// The request quota follows the upstream convention of 6 requests per
// minute per 1000 TPM.
func NewOpenAILimiter(logger zerolog.Logger, clk clock.Clock, tokensPerMinute map[string]int64) *OpenAILimiter {
	quotas := make(map[string]deploymentQuota, len(tokensPerMinute))
	for deployment, tpm := range tokensPerMinute {
		quotas[deployment] = deploymentQuota{
			tokensPer10s:   int64(math.Ceil(float64(tpm) / 6)),
			requestsPer10s: int64(math.Ceil(float64(tpm) / (1000 * 6))),
		}
	}

	return &OpenAILimiter{
		logger: logger.With().Str("limiter", sim.LimiterOpenAI).Logger(),
		window: newFixedWindow(clk),
		quotas: quotas,
	}
}

func (l *OpenAILimiter) Limit(rctx *sim.RequestContext) *sim.Response {
	quota, found := l.quotas[rctx.Deployment]
	if !found {
		// Deployments without a configured limit are not throttled.
		return nil
	}

	allowed, resetAt := l.window.hit(rctx.Deployment+":requests", quota.requestsPer10s, quotaWindow, 1)
	if !allowed {
		return l.throttled(rctx, resetAt)
	}

	allowed, resetAt = l.window.hit(rctx.Deployment+":tokens", quota.tokensPer10s, quotaWindow, int64(rctx.TotalTokens()))
	if !allowed {
		return l.throttled(rctx, resetAt)
	}

	return nil
}

func (l *OpenAILimiter) throttled(rctx *sim.RequestContext, resetAt time.Time) *sim.Response {
	retryAfter := retryAfterSeconds(l.window.clock.Now(), resetAt)

	l.logger.Debug().
		Str("deployment", rctx.Deployment).
		Str("retry_after", retryAfter).
		Msg("rate limit exceeded")

	return throttlingResponse(
		fmt.Sprintf("Requests to the OpenAI API Simulator have exceeded call rate limit. Please retry after %s seconds.", retryAfter),
		retryAfter,
	)
}

func retryAfterSeconds(now, resetAt time.Time) string {
	seconds := int64(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	return fmt.Sprintf("%d", seconds)
}

func throttlingResponse(message, retryAfter string) *sim.Response {
	resp := sim.NewErrorResponse(http.StatusTooManyRequests, "429", message)
	resp.Header.Set("Retry-After", retryAfter)
	resp.Header.Set("x-ratelimit-reset-requests", retryAfter)

	return resp
}
