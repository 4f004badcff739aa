// Package generator synthesizes responses for the simulated APIs.
//
// Each generator owns a slice of the URL space. The manager dispatches an
// incoming request to the first generator that recognizes its path and
// method; requests nobody recognizes get an OpenAI-style 404.
package generator

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/rs/zerolog"
)

// Deployment describes a configured model deployment.
type Deployment struct {
	Model           string
	TokensPerMinute int64
}

// Generator produces a response for requests it recognizes.
// A nil response means the request is not for this generator.
type Generator interface {
	Name() string
	Generate(rctx *sim.RequestContext) (*sim.Response, error)
}

// Latency models the simulated duration of one operation kind.
type Latency struct {
	Mean   time.Duration
	StdDev time.Duration
}

// sample draws a duration from the model, clamped at zero.
func (l Latency) sample(rnd *rand.Rand) time.Duration {
	if l.Mean <= 0 {
		return 0
	}

	d := time.Duration(rnd.NormFloat64()*float64(l.StdDev)) + l.Mean
	if d < 0 {
		return 0
	}

	return d
}

// lockedRand guards a rand.Rand for use from concurrent handlers.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))} // nolint:gosec
}

func (r *lockedRand) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rnd.Intn(n)
}

func (r *lockedRand) text(tokenCount int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return loremText(r.rnd, tokenCount)
}

func (r *lockedRand) latency(l Latency) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return l.sample(r.rnd)
}

// Manager dispatches requests to the registered generators.
type Manager struct {
	logger     zerolog.Logger
	generators []Generator
}

func NewManager(logger zerolog.Logger, generators ...Generator) *Manager {
	return &Manager{
		logger:     logger.With().Str("component", "generator").Logger(),
		generators: generators,
	}
}

// HandleRequest dispatches the request to the first generator that
// recognizes it.
func (m *Manager) HandleRequest(rctx *sim.RequestContext) (*sim.Response, error) {
	for _, g := range m.generators {
		resp, err := g.Generate(rctx)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			m.logger.Debug().Str("generator", g.Name()).Str("path", rctx.Request.URL.Path).Msg("request handled")
			return resp, nil
		}
	}

	m.logger.Debug().Str("path", rctx.Request.URL.Path).Msg("no generator matched")

	return sim.NewErrorResponse(http.StatusNotFound, "404", "Resource not found"), nil
}
