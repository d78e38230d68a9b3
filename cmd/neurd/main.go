// neurd is the Neur chat server: an authenticated streaming API over the
// tool-calling agent pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Xalamander777/neur-app/pkg/agent"
	"github.com/Xalamander777/neur-app/pkg/api"
	"github.com/Xalamander777/neur-app/pkg/config"
	"github.com/Xalamander777/neur-app/pkg/logging"
	"github.com/Xalamander777/neur-app/pkg/market"
	"github.com/Xalamander777/neur-app/pkg/metrics"
	"github.com/Xalamander777/neur-app/pkg/model"
	"github.com/Xalamander777/neur-app/pkg/social"
	"github.com/Xalamander777/neur-app/pkg/solana"
	"github.com/Xalamander777/neur-app/pkg/storage"
	"github.com/Xalamander777/neur-app/pkg/telemetry"
	"github.com/Xalamander777/neur-app/pkg/tool"
	"github.com/Xalamander777/neur-app/pkg/tool/builtin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "neurd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider("neurd")
		if err != nil {
			return fmt.Errorf("starting tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(shutdownCtx)
		}()
	}

	reg := tool.NewRegistry()
	builtin.RegisterAll(reg, builtin.Deps{
		Solana:  solana.NewClient(cfg.Solana.RPCURL),
		Dex:     market.NewDexscreener(""),
		Jupiter: market.NewJupiter(cfg.Solana.JupiterURL),
		Twitter: social.NewTwitter(cfg.Social.TwitterBearerToken, ""),
	})

	m := metrics.New()

	engine := agent.NewEngine(agent.EngineOptions{
		Client:   model.NewClient(cfg.Model.APIKey, cfg.Model.BaseURL),
		Registry: reg,
		Store:    store,
		Logger:   logger,
		Metrics:  m,
		Config: agent.Config{
			Model:       cfg.Model.Name,
			RepairModel: cfg.Model.RepairModel,
		},
		DisabledTools: cfg.DisabledTools,
	})

	srv := api.NewServer(api.Options{
		Engine:        engine,
		Registry:      reg,
		Store:         store,
		Logger:        logger,
		Metrics:       m,
		JWTSecret:     cfg.Server.JWTSecret,
		DisabledTools: cfg.DisabledTools,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(logging.CategoryAPI, "server_started", "listening", map[string]any{
			"addr": cfg.Server.ListenAddr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	var logger *logging.Logger
	if cfg.Dir != "" {
		l, err := logging.NewFileLogger(cfg.Dir)
		if err != nil {
			return nil, err
		}
		logger = l
	} else {
		logger = logging.NewLogger(os.Stdout)
	}

	if cfg.Level != "" {
		logger.SetMinLevel(logging.Level(cfg.Level))
	}
	return logger, nil
}
