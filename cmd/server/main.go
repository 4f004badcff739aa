package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aoai-simulated-api/internal/generator"
	"aoai-simulated-api/internal/limiter"
	"aoai-simulated-api/internal/recording"
	"aoai-simulated-api/internal/sim"
	"aoai-simulated-api/internal/usagestore"
	api "aoai-simulated-api/pkg/restapi"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Listen to termination signals.
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Initialize config.
	config, err := LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config cannot be loaded")
	}

	// Initialize logger.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if config.LogFormat == PrettyLogFormat {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid log level")
	}

	zlog.Logger = zlog.Logger.Level(lvl)
	logger := zlog.Logger

	mode := sim.Mode(config.Mode)

	zlog.Info().Str("mode", config.Mode).Msg("starting aoai-simulated-api")
	zlog.Info().Str("api_key", config.APIKey).Msg("simulator api key")

	// Initialize the usage log when a table is configured.
	usageRepo := initializeUsageRepo(ctx, config)

	clk := clock.New()

	limiters := limiter.NewRegistry(logger, clk, deploymentLimits(config), config.DocIntelligenceRPS)

	// Wire the response source for the configured mode.
	var source api.ResponseSource
	var saver api.RecordingSaver

	if mode.UsesRecordings() {
		zlog.Info().Str("dir", config.Recording.Dir).Bool("autosave", config.Recording.Autosave).Msg("recording store")

		store := recording.NewStore()
		persister := recording.NewPersister(logger, config.Recording.Dir)

		if mode == sim.ModeReplay {
			err = persister.LoadAll(store)
			if err != nil {
				zlog.Fatal().Err(err).Msg("recordings cannot be loaded")
			}
		}

		forwarder := recording.NewForwarder(logger, upstreams(config), config.Recording.ForwarderMaxRPS)
		handler := recording.NewHandler(logger, mode, store, persister, forwarder, config.Recording.Autosave)

		source = handler
		saver = handler
	} else {
		source = generator.NewManager(
			logger,
			generator.NewOpenAIGenerator(logger, deployments(config), openaiLatencies(config)),
			generator.NewDocIntelligenceGenerator(logger, clk, latency(config.Latency.DocIntelligence)),
		)
	}

	// Initialize the REST server.
	router := api.NewRouter(api.RouterOpts{
		Logger:    logger,
		Mode:      mode,
		APIKey:    config.APIKey,
		Source:    source,
		Saver:     saver,
		Limiters:  limiters,
		UsageRepo: usageRepo,
		Timeout:   config.API.ServerTimeout,
	})

	srv := &http.Server{
		Addr:              config.API.ListeningAddress,
		Handler:           router,
		ReadTimeout:       20 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		zlog.Info().Str("address", config.API.ListeningAddress).Msg("starting the server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server listen failed")
		}
	}()

	// Export Prometheus metrics.
	go func() {
		zlog.Info().Str("address", config.PrometheusExportAddress).Msg("starting the prometheus exporter")

		metricSrv := &http.Server{
			Addr:              config.PrometheusExportAddress,
			Handler:           http.DefaultServeMux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		}

		http.DefaultServeMux.Handle("/metrics", promhttp.Handler())
		err := metricSrv.ListenAndServe()
		if err != nil {
			zlog.Error().Err(err).Msg("prometheus exporter failed")
		}
	}()

	<-stop
	cancel()

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdown()

	// Unsaved recordings would be lost on restart.
	if mode == sim.ModeRecord && saver != nil {
		err = saver.SaveRecordings()
		if err != nil {
			zlog.Error().Err(err).Msg("recordings cannot be saved")
		}
	}

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
}

func initializeUsageRepo(ctx context.Context, config *Config) usagestore.Repository {
	if config.AWS.UsageTableName == "" {
		return usagestore.Nop{}
	}

	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		// Load AWS config with credentials when AccessKeyID is not empty.
		// Otherwise, we let SDK to pick credentials from available sources automatically.
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}

	awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load AWS config")
	}

	return usagestore.NewRepository(ctx, dynamodb.NewFromConfig(awsConfig), config.AWS.UsageTableName)
}

func deployments(config *Config) map[string]generator.Deployment {
	result := make(map[string]generator.Deployment, len(config.Deployments))
	for name, d := range config.Deployments {
		result[name] = generator.Deployment{
			Model:           d.Model,
			TokensPerMinute: d.TokensPerMinute,
		}
	}

	return result
}

func deploymentLimits(config *Config) map[string]int64 {
	limits := make(map[string]int64, len(config.Deployments))
	for name, d := range config.Deployments {
		limits[name] = d.TokensPerMinute
	}

	return limits
}

func upstreams(config *Config) []recording.Upstream {
	result := make([]recording.Upstream, 0, len(config.Recording.Forwarders))
	for _, f := range config.Recording.Forwarders {
		result = append(result, recording.Upstream{
			Prefix:  f.Prefix,
			BaseURL: f.BaseURL,
			APIKey:  f.APIKey,
		})
	}

	return result
}

func latency(l OperationLatency) generator.Latency {
	return generator.Latency{
		Mean:   l.Mean,
		StdDev: l.StdDev,
	}
}

func openaiLatencies(config *Config) generator.OpenAILatencies {
	return generator.OpenAILatencies{
		ChatCompletions: latency(config.Latency.ChatCompletions),
		Completions:     latency(config.Latency.Completions),
		Embeddings:      latency(config.Latency.Embeddings),
	}
}
