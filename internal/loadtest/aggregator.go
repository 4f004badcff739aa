package loadtest

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Aggregator computes latency percentiles over completed requests.
type Aggregator struct {
	durations []time.Duration
}

func NewAggregator(requests []*Request) *Aggregator {
	durations := make([]time.Duration, 0, len(requests))
	for _, r := range requests {
		if r.TimeElapsed != nil {
			durations = append(durations, *r.TimeElapsed)
		}
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})

	return &Aggregator{durations: durations}
}

func (a *Aggregator) Percentile(percentile int) (time.Duration, error) {
	if percentile < 1 || percentile > 100 {
		return 0, errors.Errorf("invalid percentile %d", percentile)
	}

	index := len(a.durations)*percentile/100 - 1
	if index < 0 {
		return 0, errors.Errorf("not enough data for percentile %d", percentile)
	}

	return a.durations[index], nil
}

func (a *Aggregator) LogPercentiles(logger zerolog.Logger, percentiles []int) {
	for _, p := range percentiles {
		value, err := a.Percentile(p)
		if err != nil {
			logger.Warn().Err(err).Int("percentile", p).Msg("percentile cannot be calculated")
			continue
		}

		logger.Info().Int("percentile", p).Dur("value", value).Msg("latency percentile")
	}
}
