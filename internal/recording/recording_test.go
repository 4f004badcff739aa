package recording

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aoai-simulated-api/internal/sim"

	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFind(t *testing.T) {
	store := NewStore()

	first := Interaction{
		Method:      http.MethodPost,
		Path:        "/openai/deployments/gpt/chat/completions",
		RequestHash: HashRequestBody([]byte("first")),
		StatusCode:  200,
		Body:        "first response",
	}
	second := first
	second.RequestHash = HashRequestBody([]byte("second"))
	second.Body = "second response"

	store.Add(first)
	store.Add(second)

	found, ok := store.Find(http.MethodPost, first.Path, second.RequestHash)
	require.True(t, ok)
	assert.Equal(t, "second response", found.Body)

	// An unknown body hash falls back to the first recording for the path.
	found, ok = store.Find(http.MethodPost, first.Path, HashRequestBody([]byte("other")))
	require.True(t, ok)
	assert.Equal(t, "first response", found.Body)

	_, ok = store.Find(http.MethodGet, first.Path, first.RequestHash)
	assert.False(t, ok)

	_, ok = store.Find(http.MethodPost, "/unknown", first.RequestHash)
	assert.False(t, ok)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "openai_deployments_gpt_chat_completions.yaml", FileName("/openai/deployments/gpt/chat/completions"))
	assert.Equal(t, "root.yaml", FileName("/"))
	assert.Equal(t, "path_api-version_1.yaml", FileName("/path?api-version=1"))
}

func TestPersisterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	persister := NewPersister(zlog.Logger, dir)

	store := NewStore()
	store.Add(Interaction{
		Method:      http.MethodPost,
		Path:        "/openai/deployments/gpt/chat/completions",
		RequestHash: HashRequestBody([]byte("body")),
		StatusCode:  200,
		Headers:     map[string]string{"Content-Type": "application/json"},
		Body:        `{"usage":{"prompt_tokens":3,"completion_tokens":5,"total_tokens":8}}`,
		DurationMS:  120,
	})
	store.Add(Interaction{
		Method:     http.MethodGet,
		Path:       "/other",
		StatusCode: 204,
	})

	require.NoError(t, persister.SaveAll(store))

	reloaded := NewStore()
	require.NoError(t, persister.LoadAll(reloaded))
	assert.Equal(t, 2, reloaded.Len())

	found, ok := reloaded.Find(http.MethodPost, "/openai/deployments/gpt/chat/completions", HashRequestBody([]byte("body")))
	require.True(t, ok)
	assert.Equal(t, 200, found.StatusCode)
	assert.Equal(t, int64(120), found.DurationMS)
	assert.Equal(t, "application/json", found.Headers["Content-Type"])
}

func TestPersisterLoadMissingDir(t *testing.T) {
	persister := NewPersister(zlog.Logger, "/nonexistent/recordings")

	store := NewStore()
	require.NoError(t, persister.LoadAll(store))
	assert.Equal(t, 0, store.Len())
}

func TestRecordModeForwardsAndStores(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"usage":{"prompt_tokens":7,"completion_tokens":9,"total_tokens":16}}`))
	}))
	defer upstream.Close()

	forwarder := NewForwarder(zlog.Logger, []Upstream{
		{Prefix: "/openai/", BaseURL: upstream.URL, APIKey: "upstream-key"},
	}, 100)

	store := NewStore()
	handler := NewHandler(zlog.Logger, sim.ModeRecord, store, NewPersister(zlog.Logger, t.TempDir()), forwarder, false)

	req := httptest.NewRequest(http.MethodPost, "/openai/deployments/gpt/chat/completions", bytes.NewReader([]byte(`{"messages":[]}`)))
	req.Header.Set("api-key", "simulator-key")
	rctx := sim.NewRequestContext(req)

	resp, err := handler.HandleRequest(rctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "gpt", rctx.Deployment)
	assert.Equal(t, sim.LimiterOpenAI, rctx.Limiter)
	assert.Equal(t, 7, rctx.PromptTokens)
	assert.Equal(t, 9, rctx.CompletionTokens)
}

func TestRecordModeNoUpstream(t *testing.T) {
	forwarder := NewForwarder(zlog.Logger, nil, 100)
	handler := NewHandler(zlog.Logger, sim.ModeRecord, NewStore(), NewPersister(zlog.Logger, t.TempDir()), forwarder, false)

	req := httptest.NewRequest(http.MethodPost, "/openai/deployments/gpt/chat/completions", bytes.NewReader(nil))
	resp, err := handler.HandleRequest(sim.NewRequestContext(req))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReplayMode(t *testing.T) {
	store := NewStore()
	store.Add(Interaction{
		Method:      http.MethodPost,
		Path:        "/openai/deployments/gpt/chat/completions",
		RequestHash: HashRequestBody([]byte(`{"messages":[]}`)),
		StatusCode:  200,
		Headers:     map[string]string{"Content-Type": "application/json"},
		Body:        `{"usage":{"prompt_tokens":2,"completion_tokens":4,"total_tokens":6}}`,
		DurationMS:  250,
	})

	handler := NewHandler(zlog.Logger, sim.ModeReplay, store, NewPersister(zlog.Logger, t.TempDir()), nil, false)

	req := httptest.NewRequest(http.MethodPost, "/openai/deployments/gpt/chat/completions", bytes.NewReader([]byte(`{"messages":[]}`)))
	rctx := sim.NewRequestContext(req)

	resp, err := handler.HandleRequest(rctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, 250*time.Millisecond, rctx.TargetDuration)
	assert.Equal(t, 2, rctx.PromptTokens)
	assert.Equal(t, 4, rctx.CompletionTokens)
}

func TestReplayModeMiss(t *testing.T) {
	handler := NewHandler(zlog.Logger, sim.ModeReplay, NewStore(), NewPersister(zlog.Logger, t.TempDir()), nil, false)

	req := httptest.NewRequest(http.MethodGet, "/never/recorded", nil)
	resp, err := handler.HandleRequest(sim.NewRequestContext(req))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
