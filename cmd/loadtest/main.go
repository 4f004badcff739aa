package main

import (
	"os"
	"time"

	"aoai-simulated-api/internal/loadtest"
	"aoai-simulated-api/pkg/simclient"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// chatClient narrows the simulator client to what the driver needs.
type chatClient struct {
	cli *simclient.Client
}

func (c chatClient) ChatCompletion(deployment string, prompt string, maxTokens int) (time.Duration, error) {
	elapsed, _, err := c.cli.ChatCompletion(deployment, prompt, maxTokens)
	return elapsed, err
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config cannot be loaded")
	}

	scenario, err := loadtest.LoadScenario(config.Test.ScenarioPath, config.Test.DefaultDeployment)
	if err != nil {
		zlog.Fatal().Err(err).Msg("scenario cannot be loaded")
	}

	client := simclient.New(&simclient.Config{
		BaseURL: config.Simulator.BaseURL,
		APIKey:  config.Simulator.APIKey,
	})

	driver, err := loadtest.NewDriver(zlog.Logger, chatClient{cli: client}, config.Test.Mode, config.Test.Concurrency)
	if err != nil {
		zlog.Fatal().Err(err).Msg("driver cannot be created")
	}

	zlog.Info().
		Str("mode", string(config.Test.Mode)).
		Int("requests", len(scenario.Requests)).
		Msg("starting the load test")

	err = driver.Run(scenario)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load test failed")
	}

	if config.Test.OutputPath != "" {
		err = scenario.Export(config.Test.OutputPath)
		if err != nil {
			zlog.Error().Err(err).Msg("results cannot be exported")
		}
	}

	loadtest.NewAggregator(scenario.Requests).LogPercentiles(zlog.Logger, config.Test.Percentiles)
}
