package generator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/benbjohnson/clock"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDeployments = map[string]Deployment{
	"gpt-35": {Model: "gpt-3.5-turbo", TokensPerMinute: 60000},
	"embed":  {Model: "text-embedding-ada-002", TokensPerMinute: 10000},
}

func postJSON(path string, payload interface{}) *sim.RequestContext {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))

	return sim.NewRequestContext(req)
}

func decodeBody(t *testing.T, resp *sim.Response) map[string]interface{} {
	t.Helper()

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body, &decoded))

	return decoded
}

func TestChatCompletion(t *testing.T) {
	g := NewOpenAIGenerator(zlog.Logger, testDeployments, OpenAILatencies{})

	rctx := postJSON("/openai/deployments/gpt-35/chat/completions", map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": "tell me about the moon landing"},
		},
	})

	resp, err := g.Generate(rctx)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gpt-35", rctx.Deployment)
	assert.Equal(t, sim.LimiterOpenAI, rctx.Limiter)
	assert.Equal(t, defaultCompletionTokens, rctx.CompletionTokens)
	assert.Greater(t, rctx.PromptTokens, 0)

	decoded := decodeBody(t, resp)
	assert.Equal(t, "chat.completion", decoded["object"])
	assert.Equal(t, "gpt-3.5-turbo", decoded["model"])

	u := decoded["usage"].(map[string]interface{})
	assert.Equal(t, float64(rctx.PromptTokens+rctx.CompletionTokens), u["total_tokens"])
}

func TestChatCompletionMaxTokens(t *testing.T) {
	g := NewOpenAIGenerator(zlog.Logger, testDeployments, OpenAILatencies{})

	rctx := postJSON("/openai/deployments/gpt-35/chat/completions", map[string]interface{}{
		"messages":   []map[string]string{{"role": "user", "content": "hi"}},
		"max_tokens": 5,
	})

	resp, err := g.Generate(rctx)
	require.NoError(t, err)

	assert.Equal(t, 5, rctx.CompletionTokens)

	decoded := decodeBody(t, resp)
	choice := decoded["choices"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "length", choice["finish_reason"])
}

func TestChatCompletionUnknownDeployment(t *testing.T) {
	g := NewOpenAIGenerator(zlog.Logger, testDeployments, OpenAILatencies{})

	rctx := postJSON("/openai/deployments/nope/chat/completions", map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})

	resp, err := g.Generate(rctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	decoded := decodeBody(t, resp)
	e := decoded["error"].(map[string]interface{})
	assert.Equal(t, "DeploymentNotFound", e["code"])
}

func TestEmbeddings(t *testing.T) {
	g := NewOpenAIGenerator(zlog.Logger, testDeployments, OpenAILatencies{})

	rctx := postJSON("/openai/deployments/embed/embeddings", map[string]interface{}{
		"input": []string{"first text", "second text"},
	})

	resp, err := g.Generate(rctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeBody(t, resp)
	data := decoded["data"].([]interface{})
	require.Len(t, data, 2)

	vector := data[0].(map[string]interface{})["embedding"].([]interface{})
	assert.Len(t, vector, embeddingDimensions)
}

func TestEmbeddingsDeterministic(t *testing.T) {
	a := embeddingVector("the same input")
	b := embeddingVector("the same input")
	c := embeddingVector("a different input")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDocIntelligenceLifecycle(t *testing.T) {
	clk := clock.NewMock()
	g := NewDocIntelligenceGenerator(zlog.Logger, clk, Latency{})

	submit := sim.NewRequestContext(httptest.NewRequest(
		http.MethodPost,
		"/formrecognizer/documentModels/prebuilt-read:analyze?api-version=2023-07-31",
		bytes.NewReader(bytes.Repeat([]byte("x"), 1024)),
	))

	resp, err := g.Generate(submit)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, sim.LimiterDocIntelligence, submit.Limiter)

	location := resp.Header.Get("Operation-Location")
	require.NotEmpty(t, location)

	poll := sim.NewRequestContext(httptest.NewRequest(http.MethodGet, location, nil))

	resp, err = g.Generate(poll)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeBody(t, resp)
	assert.Equal(t, "succeeded", decoded["status"])
	result := decoded["analyzeResult"].(map[string]interface{})
	assert.Equal(t, "prebuilt-read", result["modelId"])
	assert.NotEmpty(t, result["content"])
}

func TestDocIntelligenceExpiredOperation(t *testing.T) {
	clk := clock.NewMock()
	g := NewDocIntelligenceGenerator(zlog.Logger, clk, Latency{})

	submit := sim.NewRequestContext(httptest.NewRequest(
		http.MethodPost,
		"/formrecognizer/documentModels/prebuilt-read:analyze",
		bytes.NewReader([]byte("doc")),
	))

	resp, err := g.Generate(submit)
	require.NoError(t, err)

	location := resp.Header.Get("Operation-Location")
	clk.Add(operationTTL + time.Minute)

	poll := sim.NewRequestContext(httptest.NewRequest(http.MethodGet, location, nil))

	resp, err = g.Generate(poll)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManagerNoMatch(t *testing.T) {
	m := NewManager(zlog.Logger, NewOpenAIGenerator(zlog.Logger, testDeployments, OpenAILatencies{}))

	rctx := sim.NewRequestContext(httptest.NewRequest(http.MethodGet, "/unknown/path", nil))

	resp, err := m.HandleRequest(rctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatencySample(t *testing.T) {
	rnd := newLockedRand(42)

	assert.Equal(t, time.Duration(0), rnd.latency(Latency{}))

	for i := 0; i < 100; i++ {
		d := rnd.latency(Latency{Mean: 10 * time.Millisecond, StdDev: 5 * time.Millisecond})
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
