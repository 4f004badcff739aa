package recording

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
)

const DefaultMaxRPS = 10

// ErrNoForwarder means no configured upstream matches the request path.
var ErrNoForwarder = errors.New("no forwarder configured for path")

// Upstream routes a path prefix to a real service.
type Upstream struct {
	Prefix  string
	BaseURL string
	APIKey  string
}

// Forwarder proxies requests to the configured upstreams in record mode.
// Calls are paced with a leaky-bucket limiter so that recording sessions
// do not exhaust the real service's quota.
type Forwarder struct {
	logger    zerolog.Logger
	upstreams []Upstream
	rl        ratelimit.Limiter

	cli *http.Client
}

func NewForwarder(logger zerolog.Logger, upstreams []Upstream, maxRPS int, httpCli ...*http.Client) *Forwarder {
	if maxRPS <= 0 {
		maxRPS = DefaultMaxRPS
	}

	f := &Forwarder{
		logger:    logger.With().Str("component", "forwarder").Logger(),
		upstreams: upstreams,
		rl:        ratelimit.New(maxRPS),
		cli:       http.DefaultClient,
	}
	if len(httpCli) == 1 {
		f.cli = httpCli[0]
	}

	return f
}

// Forward sends the request to the matching upstream and captures the
// response together with the observed duration.
func (f *Forwarder) Forward(ctx context.Context, r *http.Request, body []byte) (*sim.Response, time.Duration, error) {
	upstream, found := f.match(r.URL.Path)
	if !found {
		return nil, 0, errors.Wrap(ErrNoForwarder, r.URL.Path)
	}

	target := strings.TrimSuffix(upstream.BaseURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(body))
	if err != nil {
		return nil, 0, errors.Wrap(err, "upstream request cannot be built")
	}

	req.Header = r.Header.Clone()

	// The simulator's key must not leak upstream.
	req.Header.Del("Authorization")
	req.Header.Set("api-key", upstream.APIKey)
	if req.Header.Get("ocp-apim-subscription-key") != "" {
		req.Header.Set("ocp-apim-subscription-key", upstream.APIKey)
	}

	f.rl.Take()

	startedAt := time.Now()

	resp, err := f.cli.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "upstream request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "upstream body read failed")
	}

	duration := time.Since(startedAt)

	f.logger.Debug().
		Str("path", r.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", duration).
		Msg("request forwarded")

	return &sim.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, duration, nil
}

func (f *Forwarder) match(path string) (Upstream, bool) {
	for _, u := range f.upstreams {
		if strings.HasPrefix(path, u.Prefix) {
			return u, true
		}
	}

	return Upstream{}, false
}
