package loadtest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientMock struct {
	mu    sync.Mutex
	calls int
}

func (c *clientMock) ChatCompletion(_ string, _ string, _ int) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	return time.Duration(c.calls) * time.Millisecond, nil
}

func TestScenarioRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")

	elapsed := 120 * time.Millisecond
	scenario := &Scenario{
		Requests: []*Request{
			{Prompt: "first", MaxTokens: 10, TimeElapsed: &elapsed},
			{Deployment: "custom", Prompt: "second"},
		},
	}

	require.NoError(t, scenario.Export(path))

	loaded, err := LoadScenario(path, "default-deployment")
	require.NoError(t, err)
	require.Len(t, loaded.Requests, 2)

	assert.Equal(t, "default-deployment", loaded.Requests[0].Deployment)
	assert.Equal(t, "custom", loaded.Requests[1].Deployment)
	assert.Equal(t, elapsed, *loaded.Requests[0].TimeElapsed)
}

func TestDriverSerial(t *testing.T) {
	client := &clientMock{}

	driver, err := NewDriver(zlog.Logger, client, SerialMode, 1)
	require.NoError(t, err)

	scenario := &Scenario{
		Requests: []*Request{
			{Prompt: "a"},
			{Prompt: "b"},
		},
	}

	require.NoError(t, driver.Run(scenario))
	assert.Equal(t, 2, client.calls)

	for _, r := range scenario.Requests {
		require.NotNil(t, r.TimeElapsed)
	}
}

func TestDriverParallel(t *testing.T) {
	client := &clientMock{}

	driver, err := NewDriver(zlog.Logger, client, ParallelMode, 4)
	require.NoError(t, err)

	requests := make([]*Request, 20)
	for i := range requests {
		requests[i] = &Request{Prompt: "p"}
	}

	require.NoError(t, driver.Run(&Scenario{Requests: requests}))
	assert.Equal(t, 20, client.calls)
}

func TestDriverUnknownMode(t *testing.T) {
	_, err := NewDriver(zlog.Logger, &clientMock{}, Mode("bogus"), 1)
	assert.Error(t, err)
}

func TestAggregatorPercentiles(t *testing.T) {
	requests := make([]*Request, 0, 100)
	for i := 1; i <= 100; i++ {
		elapsed := time.Duration(i) * time.Millisecond
		requests = append(requests, &Request{TimeElapsed: &elapsed})
	}

	agg := NewAggregator(requests)

	p50, err := agg.Percentile(50)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, p50)

	p99, err := agg.Percentile(99)
	require.NoError(t, err)
	assert.Equal(t, 99*time.Millisecond, p99)

	_, err = agg.Percentile(0)
	assert.Error(t, err)

	_, err = NewAggregator(nil).Percentile(50)
	assert.Error(t, err)
}
