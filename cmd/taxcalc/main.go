package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxcore/internal/config"
	"github.com/noah-isme/taxcore/internal/engine"
	"github.com/noah-isme/taxcore/internal/obs"
	"github.com/noah-isme/taxcore/internal/ruleset"
	"github.com/noah-isme/taxcore/internal/tables"
	"github.com/noah-isme/taxcore/internal/tax"
)

func main() {
	var (
		requestPath = flag.String("request", "-", "path of the JSON tax request; - reads stdin")
		describe    = flag.Bool("describe", false, "print the loaded tax sequences and exit")
		dumpMetrics = flag.Bool("metrics", false, "write engine metrics to stderr after the run")
	)
	flag.Parse()

	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "taxcalc").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.EnableTracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "taxcalc",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	registry := prometheus.NewRegistry()
	metrics := obs.NewEngineMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), registry)

	var cache *tables.Cache
	if cfg.CacheEnabled() {
		redisClient := mustInitRedis(ctx, cfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		cache = tables.NewCache(redisClient, cfg.TablesCacheTTL)
	}

	store, err := tables.Loader{Cache: cache, Key: cfg.TablesCacheKey, Path: cfg.TablesPath, Logger: logger}.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load tax tables")
	}
	services := store.Services()

	sequences, err := ruleset.LoadFile(cfg.RulesPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load tax rules")
	}
	if *describe {
		if err := ruleset.Describe(os.Stdout, sequences, services); err != nil {
			logger.Fatal().Err(err).Msg("describe rules")
		}
		return
	}

	calc, err := engine.NewCalculator(engine.Config{
		Services:  services,
		Sequences: sequences,
		Workers:   cfg.EngineWorkers,
		Logger:    &logger,
		Observer:  metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise calculator")
	}

	req, err := readRequest(*requestPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read request")
	}

	start := time.Now()
	resp, err := calc.Calculate(ctx, req)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			logger.Error().Err(err).Msg("request rejected")
			os.Exit(2)
		}
		logger.Fatal().Err(err).Msg("calculate taxes")
	}
	logger.Info().
		Str("response_id", resp.ID.String()).
		Int("itins", len(resp.Itins)).
		Dur("elapsed", time.Since(start)).
		Msg("taxes calculated")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Fatal().Err(err).Msg("write response")
	}

	if *dumpMetrics {
		if err := writeMetrics(os.Stderr, registry); err != nil {
			logger.Error().Err(err).Msg("write metrics")
		}
	}
}

func readRequest(path string) (*tax.Request, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req tax.Request
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
