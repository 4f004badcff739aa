package main

import (
	"os"

	"aoai-simulated-api/internal/loadtest"

	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "loadtest_config.yaml"

type Config struct {
	Simulator SimulatorSettings `mapstructure:"simulator"`
	Test      TestSettings      `mapstructure:"test"`
}

type SimulatorSettings struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type TestSettings struct {
	Mode              loadtest.Mode `mapstructure:"mode"`
	Concurrency       int           `mapstructure:"concurrency"`
	ScenarioPath      string        `mapstructure:"scenario_path"`
	OutputPath        string        `mapstructure:"output_path"`
	DefaultDeployment string        `mapstructure:"default_deployment"`
	Percentiles       []int         `mapstructure:"percentiles_to_calculate"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}

	gconfig.WithOptions(
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
			}
		},
	)
	gconfig.AddDriver(gyaml.Driver)

	err := gconfig.LoadFiles(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	cfg := new(Config)
	err = gconfig.BindStruct("", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "config binding failed")
	}

	err = cfg.validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Simulator.BaseURL == "" {
		return errors.New("simulator.base_url is required")
	}

	if c.Test.Mode == "" {
		c.Test.Mode = loadtest.SerialMode
	}
	if c.Test.Concurrency == 0 {
		c.Test.Concurrency = 4
	}
	if c.Test.ScenarioPath == "" {
		c.Test.ScenarioPath = "scenario.yaml"
	}
	if len(c.Test.Percentiles) == 0 {
		c.Test.Percentiles = []int{50, 90, 95, 99}
	}

	return nil
}
