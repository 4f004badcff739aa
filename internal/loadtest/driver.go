package loadtest

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	SerialMode   Mode = "serial"
	ParallelMode Mode = "parallel"
)

// SimulatorClient sends one scripted request and reports its duration.
type SimulatorClient interface {
	ChatCompletion(deployment string, prompt string, maxTokens int) (time.Duration, error)
}

// Driver replays a scenario against the simulator.
type Driver struct {
	logger zerolog.Logger
	client SimulatorClient

	mode        Mode
	concurrency int
}

func NewDriver(logger zerolog.Logger, client SimulatorClient, mode Mode, concurrency int) (*Driver, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	switch mode {
	case SerialMode, ParallelMode:

	default:
		return nil, errors.Errorf("unknown mode %q (supported: %s, %s)", mode, SerialMode, ParallelMode)
	}

	return &Driver{
		logger:      logger.With().Str("component", "loadtest").Logger(),
		client:      client,
		mode:        mode,
		concurrency: concurrency,
	}, nil
}

func (d *Driver) Run(scenario *Scenario) error {
	switch d.mode {
	case SerialMode:
		return d.runSerial(scenario)

	case ParallelMode:
		return d.runParallel(scenario)

	default:
		return errors.Errorf("unknown mode %q", d.mode)
	}
}

// runSerial sends requests one by one, keeping the scripted gaps
// between timestamped requests.
func (d *Driver) runSerial(scenario *Scenario) error {
	for i, r := range scenario.Requests {
		elapsed, err := d.client.ChatCompletion(r.Deployment, r.Prompt, r.MaxTokens)
		if err != nil {
			d.logger.Warn().Err(err).Int("request", i).Msg("request failed")
		}

		r.TimeElapsed = &elapsed

		d.logger.Info().Int("request", i).Dur("elapsed", elapsed).Msg("request processed")

		if i == len(scenario.Requests)-1 {
			continue
		}

		next := scenario.Requests[i+1]
		if !r.Timestamp.IsZero() && !next.Timestamp.IsZero() {
			time.Sleep(next.Timestamp.Sub(r.Timestamp))
		}
	}

	return nil
}

// runParallel sends requests from a bounded pool of workers.
func (d *Driver) runParallel(scenario *Scenario) error {
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, r := range scenario.Requests {
		i, r := i, r

		g.Go(func() error {
			elapsed, err := d.client.ChatCompletion(r.Deployment, r.Prompt, r.MaxTokens)
			if err != nil {
				d.logger.Warn().Err(err).Int("request", i).Msg("request failed")
			}

			r.TimeElapsed = &elapsed

			return nil
		})
	}

	return g.Wait()
}
