package main

import (
	"context"
	"os"
	"time"

	"aoai-simulated-api/internal/sim"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "config.yaml"

const (
	PrettyLogFormat = "pretty"
	JSONLogFormat   = "json"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	APIKey string `mapstructure:"api_key"`

	API API `mapstructure:"api"`

	PrometheusExportAddress string `mapstructure:"prometheus_address"`

	Latency LatencyConfig `mapstructure:"latency"`

	Recording Recording `mapstructure:"recording"`

	Deployments map[string]DeploymentConfig `mapstructure:"deployments"`

	DocIntelligenceRPS int `mapstructure:"doc_intelligence_rps"`

	AWS AWS `mapstructure:"aws"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type API struct {
	ListeningAddress string        `mapstructure:"address"`
	ServerTimeout    time.Duration `mapstructure:"server_timeout"`
}

type LatencyConfig struct {
	ChatCompletions OperationLatency `mapstructure:"chat_completions"`
	Completions     OperationLatency `mapstructure:"completions"`
	Embeddings      OperationLatency `mapstructure:"embeddings"`
	DocIntelligence OperationLatency `mapstructure:"doc_intelligence"`
}

type OperationLatency struct {
	Mean   time.Duration `mapstructure:"mean"`
	StdDev time.Duration `mapstructure:"std_dev"`
}

type Recording struct {
	Dir      string `mapstructure:"dir"`
	Autosave bool   `mapstructure:"autosave"`

	ForwarderMaxRPS int `mapstructure:"forwarder_max_rps"`

	Forwarders []ForwarderConfig `mapstructure:"forwarders"`
}

type ForwarderConfig struct {
	Prefix  string `mapstructure:"prefix"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type DeploymentConfig struct {
	Model           string `mapstructure:"model"`
	TokensPerMinute int64  `mapstructure:"tokens_per_minute"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	UsageTableName string `mapstructure:"usage_table"`
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
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
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

// validate verifies the loaded config and sets default values for missed fields.
func (c *Config) validate() error {
	mode, err := sim.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = string(mode)

	if c.APIKey == "" {
		// The generated key is logged at startup.
		c.APIKey = uuid.New().String()
	}

	if c.API.ListeningAddress == "" {
		c.API.ListeningAddress = ":8000"
	}
	if c.API.ServerTimeout == 0 {
		c.API.ServerTimeout = 60 * time.Second
	}

	if c.PrometheusExportAddress == "" {
		c.PrometheusExportAddress = ":2112"
	}

	if c.Recording.Dir == "" {
		c.Recording.Dir = ".recordings"
	}

	if mode == sim.ModeRecord && len(c.Recording.Forwarders) == 0 {
		return errors.New("recording.forwarders is required when mode is record")
	}

	for i, f := range c.Recording.Forwarders {
		if f.Prefix == "" {
			return errors.Errorf("recording.forwarders[%d].prefix is required", i)
		}
		if f.BaseURL == "" {
			return errors.Errorf("recording.forwarders[%d].base_url is required", i)
		}
	}

	for name, d := range c.Deployments {
		if d.TokensPerMinute <= 0 {
			return errors.Errorf("deployments.%s.tokens_per_minute must be > 0", name)
		}
	}

	if c.AWS.UsageTableName != "" && c.AWS.Region == "" {
		return errors.New("aws.region is required when aws.usage_table is set")
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = JSONLogFormat
	}

	return nil
}

func (c *Config) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Source:          "local config",
	}, nil
}
