package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lsm/karajan/internal/config"
	"github.com/lsm/karajan/internal/dlq"
	"github.com/lsm/karajan/internal/host"
	"github.com/lsm/karajan/internal/observability"
	"github.com/lsm/karajan/internal/pipeline"
	"github.com/lsm/karajan/internal/ratelimit"
	"github.com/lsm/karajan/internal/reply"
	"github.com/lsm/karajan/internal/source"
	"github.com/lsm/karajan/internal/source/poll"
	"github.com/lsm/karajan/internal/source/webhook"
	"github.com/lsm/karajan/internal/store"
	"github.com/lsm/karajan/internal/telegram"
	"github.com/lsm/karajan/internal/tracing"
	"github.com/lsm/karajan/internal/wasm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("KARAJAN_CONFIG"), "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	levelName := cfg.LogLevel
	if *logLevel != "" {
		levelName = *logLevel
	}
	logger := observability.NewLogger("karajan-host", observability.ParseLogLevel(levelName)).With("bot", cfg.Bot.Name)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tcfg := tracing.GetConfig("karajan-host")
	tcfg.Bot = cfg.Bot.Name
	if cfg.Guest.Module != "" {
		tcfg.Runtime, tcfg.ABI = cfg.Guest.Runtime, cfg.Guest.ABI
	}
	tracer, shutdownTracing, err := tracing.Initialize(tcfg, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	td := &teardown{logger: logger}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = td.run(shutdownCtx)
		logger.Info("shutdown complete")
	}()
	td.add("tracing", shutdownTracing)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(reg)

	st, err := store.Open(ctx, cfg.Store.DSN, cfg.Store.Prefix)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	td.add("store", func(context.Context) error { return st.Close() })

	health := observability.NewHealthServer()
	health.AddCheck("store", func(ctx context.Context) error {
		_, err := st.Get(ctx, "karajan:health")
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("GET /healthz", health.Handler())
	mux.Handle("GET /readyz", health.Handler())

	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("metrics server starting", "addr", cfg.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	td.add("http server", httpServer.Shutdown)

	client, err := telegram.NewClient(cfg.Bot.Token,
		telegram.WithBaseURL(cfg.Bot.APIURL),
		telegram.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("telegram client: %w", err)
	}

	h := host.NewTelegram(client, st,
		host.WithLimiter(ratelimit.New(cfg.RateLimit.Global, cfg.RateLimit.PerChat)),
		host.WithMetrics(metrics),
		host.WithLogger(logger),
		host.WithBotName(cfg.Bot.Name),
	)

	proc, err := buildProcessor(ctx, cfg, h, logger)
	if err != nil {
		return err
	}

	src, err := buildSource(ctx, cfg, client, metrics, logger)
	if err != nil {
		_ = proc.Close()
		return err
	}

	p := pipeline.New(
		pipeline.Config{BotName: cfg.Bot.Name, PropagateErrors: cfg.PropagateErrors},
		src, proc,
		dlq.NewHandler(dlq.NewStorePublisher(st)),
		pipeline.WithMetrics(metrics),
		pipeline.WithTracer(tracer),
		pipeline.WithLogger(logger),
	)
	// Closes source, guest and dead-letter handler.
	td.add("pipeline", p.Shutdown)

	health.SetReady(true)

	pipelineErr := p.Run(ctx)
	if errors.Is(pipelineErr, context.Canceled) {
		pipelineErr = nil
	}

	health.SetReady(false)
	return pipelineErr
}

// buildProcessor loads the guest module, or falls back to the built-in reply
// logic when none is configured.
func buildProcessor(ctx context.Context, cfg *config.Config, h host.Host, logger *slog.Logger) (pipeline.Processor, error) {
	if cfg.Guest.Module == "" {
		logger.Info("no guest module configured, using built-in replies")
		return reply.NewProcessor(h), nil
	}

	wcfg := cfg.WasmConfig()
	factory := wasm.NewFactory(logger)

	var rt wasm.Runtime
	var err error
	if cfg.Guest.Watch {
		rt, err = wasm.NewReloader(ctx, factory, wcfg, h, logger)
	} else {
		rt, err = factory.Create(ctx, wcfg, h)
	}
	if err != nil {
		return nil, fmt.Errorf("load guest %s: %w", wcfg.ModulePath, err)
	}

	logger.Info("guest loaded", "module", wcfg.ModulePath, "abi", wcfg.ABI, "runtime", rt.Type(), "watch", cfg.Guest.Watch)
	return wasm.NewGuest(rt, cfg.Bot.Name, logger), nil
}

func buildSource(ctx context.Context, cfg *config.Config, client *telegram.Client, metrics *observability.Metrics, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source.Type {
	case config.SourceWebhook:
		s, err := webhook.NewSource(cfg.WebhookConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("webhook source: %w", err)
		}
		if cfg.Source.PublicURL != "" {
			if err := client.SetWebhook(ctx, cfg.Source.PublicURL, cfg.Source.Secret); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("register webhook: %w", err)
			}
			logger.Info("webhook registered", "url", cfg.Source.PublicURL)
		}
		return s, nil

	case config.SourcePoll:
		// getUpdates is refused while a webhook is set.
		if err := client.DeleteWebhook(ctx); err != nil {
			return nil, fmt.Errorf("delete webhook: %w", err)
		}
		bot := cfg.Bot.Name
		return poll.NewSource(client, cfg.PollConfig(), logger,
			poll.WithErrorHook(func(error) {
				metrics.PollErrors.WithLabelValues(bot).Inc()
			}),
		), nil

	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Source.Type)
	}
}
