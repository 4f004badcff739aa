package limiter

import (
	"fmt"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// DocIntelligenceLimiter caps analyze requests at a fixed rate per second,
// measured over a sliding one-second window.
type DocIntelligenceLimiter struct {
	logger zerolog.Logger
	window *movingWindow
	rps    int
}

func NewDocIntelligenceLimiter(logger zerolog.Logger, clk clock.Clock, requestsPerSecond int) *DocIntelligenceLimiter {
	return &DocIntelligenceLimiter{
		logger: logger.With().Str("limiter", sim.LimiterDocIntelligence).Logger(),
		window: newMovingWindow(clk),
		rps:    requestsPerSecond,
	}
}

func (l *DocIntelligenceLimiter) Limit(_ *sim.RequestContext) *sim.Response {
	if l.rps <= 0 {
		return nil
	}

	allowed, resetAt := l.window.hit("docintelligence", l.rps, time.Second)
	if allowed {
		return nil
	}

	retryAfter := retryAfterSeconds(l.window.clock.Now(), resetAt)

	l.logger.Debug().Str("retry_after", retryAfter).Msg("rate limit exceeded")

	return throttlingResponse(
		fmt.Sprintf("Requests to the Doc Intelligence API Simulator have exceeded call rate limit. Please retry after %s seconds.", retryAfter),
		retryAfter,
	)
}

// Registry maps limiter names stored in the request context to limiters.
type Registry map[string]Limiter

// NewRegistry wires the limiters the pipeline knows about.
func NewRegistry(logger zerolog.Logger, clk clock.Clock, tokensPerMinute map[string]int64, docIntelligenceRPS int) Registry {
	return Registry{
		sim.LimiterOpenAI:          NewOpenAILimiter(logger, clk, tokensPerMinute),
		sim.LimiterDocIntelligence: NewDocIntelligenceLimiter(logger, clk, docIntelligenceRPS),
	}
}
