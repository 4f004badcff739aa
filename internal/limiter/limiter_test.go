package limiter

import (
	"net/http/httptest"
	"testing"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/benbjohnson/clock"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(deployment string, tokens int) *sim.RequestContext {
	rctx := sim.NewRequestContext(httptest.NewRequest("POST", "/openai/deployments/"+deployment+"/chat/completions", nil))
	rctx.Deployment = deployment
	rctx.CompletionTokens = tokens

	return rctx
}

func TestOpenAILimiterRequestQuota(t *testing.T) {
	clk := clock.NewMock()

	// 6000 TPM: 1000 tokens and 1 request per 10 seconds.
	lim := NewOpenAILimiter(zlog.Logger, clk, map[string]int64{"gpt": 6000})

	assert.Nil(t, lim.Limit(newContext("gpt", 10)))

	resp := lim.Limit(newContext("gpt", 10))
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, resp.Header.Get("Retry-After"), resp.Header.Get("x-ratelimit-reset-requests"))

	// Window reset frees the quota.
	clk.Add(quotaWindow)
	assert.Nil(t, lim.Limit(newContext("gpt", 10)))
}

func TestOpenAILimiterTokenQuota(t *testing.T) {
	clk := clock.NewMock()

	// 60000 TPM: 10000 tokens and 10 requests per 10 seconds.
	lim := NewOpenAILimiter(zlog.Logger, clk, map[string]int64{"gpt": 60000})

	assert.Nil(t, lim.Limit(newContext("gpt", 9000)))

	// The second request fits the request quota but not the token quota.
	resp := lim.Limit(newContext("gpt", 2000))
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)

	clk.Add(quotaWindow)
	assert.Nil(t, lim.Limit(newContext("gpt", 2000)))
}

func TestOpenAILimiterUnknownDeployment(t *testing.T) {
	lim := NewOpenAILimiter(zlog.Logger, clock.NewMock(), map[string]int64{"gpt": 6000})

	for i := 0; i < 10; i++ {
		assert.Nil(t, lim.Limit(newContext("unlimited", 100)))
	}
}

func TestDocIntelligenceLimiter(t *testing.T) {
	clk := clock.NewMock()
	lim := NewDocIntelligenceLimiter(zlog.Logger, clk, 2)

	rctx := sim.NewRequestContext(httptest.NewRequest("POST", "/formrecognizer/analyze", nil))

	assert.Nil(t, lim.Limit(rctx))
	assert.Nil(t, lim.Limit(rctx))

	resp := lim.Limit(rctx)
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)

	// The window slides rather than resets.
	clk.Add(600 * time.Millisecond)
	assert.NotNil(t, lim.Limit(rctx))

	clk.Add(500 * time.Millisecond)
	assert.Nil(t, lim.Limit(rctx))
}

func TestDocIntelligenceLimiterDisabled(t *testing.T) {
	lim := NewDocIntelligenceLimiter(zlog.Logger, clock.NewMock(), 0)

	rctx := sim.NewRequestContext(httptest.NewRequest("POST", "/formrecognizer/analyze", nil))
	for i := 0; i < 10; i++ {
		assert.Nil(t, lim.Limit(rctx))
	}
}
