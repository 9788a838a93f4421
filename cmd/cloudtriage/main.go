package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudtriage/cloudtriage/internal/actions"
	"github.com/cloudtriage/cloudtriage/internal/agent"
	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/config"
	"github.com/cloudtriage/cloudtriage/internal/dispatch"
	"github.com/cloudtriage/cloudtriage/internal/observe"
	"github.com/cloudtriage/cloudtriage/internal/reasoning"
	"github.com/cloudtriage/cloudtriage/internal/safety"
	"github.com/cloudtriage/cloudtriage/internal/server"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

const serverVersion = "0.1.0"

var (
	version     = flag.Bool("version", false, "Print version and exit")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	httpMode    = flag.Bool("http", false, "Enable HTTP/SSE transport instead of stdio")
	configPath  = flag.String("config", "", "Path to a YAML configuration file")
	metricsAddr = flag.String("metrics", "", "Address for the Prometheus metrics endpoint (disabled when empty)")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("cloudtriage v" + serverVersion)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Reasoner.APIKey == "" {
		logger.Error("Reasoning backend API key is not set; set OPENAI_API_KEY")
		os.Exit(1)
	}

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "8080"
	}

	logger.Info("Starting cloudtriage diagnostic server",
		"version", serverVersion,
		"debug", *debug,
		"http_mode", *httpMode,
		"model", cfg.Reasoner.Model,
	)

	registry := prometheus.NewRegistry()
	metrics := observe.NewMetrics(registry)

	store := session.NewStore(session.Options{
		MaxSessions: cfg.Session.MaxSessions,
		IdleTimeout: cfg.Session.IdleTimeout,
		MaxHistory:  cfg.Session.MaxHistory,
		OnEvict:     metrics.RecordSessionsEvicted,
	}, nil)

	controller := safety.NewController(safety.Limits{
		PerCallBudget:      cfg.Safety.PerCallBudget,
		ActionBudget:       cfg.Safety.ActionBudget,
		MaxDepth:           cfg.Safety.MaxDepth,
		MaxFunctionCalls:   cfg.Safety.MaxFunctionCalls,
		MaxRepeatedActions: cfg.Safety.MaxRepeatedActions,
		RepeatWindow:       cfg.Safety.RepeatWindow,
	}, nil)

	actionRegistry := dispatch.NewRegistry()
	cloudAPI := actions.NewRESTCloudAPI(os.Getenv("CLOUDTRIAGE_MANAGEMENT_ENDPOINT"), nil)
	if err := actions.Register(actionRegistry, cloudAPI); err != nil {
		logger.Error("Failed to register diagnostic actions", "error", err)
		os.Exit(1)
	}

	executor := dispatch.NewExecutor(actionRegistry, auth.AllowAll{}, dispatch.RetryPolicy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialDelay:      cfg.Retry.InitialDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, cfg.Safety.ActionBudget, logger)

	reasoner := reasoning.NewOpenAIReasoner(cfg.Reasoner.APIKey, cfg.Reasoner.Model, logger)
	engine := agent.NewEngine(store, controller, executor, actionRegistry, reasoner, metrics, nil, logger)

	mcpServer := server.NewMCPServer(server.Config{
		Name:    "cloudtriage",
		Version: serverVersion,
		Input:   cfg.Input,
	}, store, engine, auth.PassthroughVerifier{}, server.NewAuditLogger(logger), metrics, nil, logger)

	logger.Info("MCP server initialized",
		"actions", len(actionRegistry.Names()),
		"max_sessions", cfg.Session.MaxSessions,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Metrics endpoint, opt-in
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			logger.Info("Starting metrics endpoint", "address", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("Metrics endpoint error", "error", err)
			}
		}()
	}

	// MCP transport
	go func() {
		if *httpMode {
			if err := mcpServer.ServeSSE(":" + httpPort); err != nil {
				logger.Error("MCP server error", "error", err)
				cancel()
			}
		} else {
			if err := mcpServer.Serve(); err != nil {
				logger.Error("MCP server error", "error", err)
				cancel()
			}
		}
	}()

	// Idle session sweep
	go func() {
		ticker := time.NewTicker(cfg.Session.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if evicted := store.Sweep(); evicted > 0 {
					logger.Info("Swept idle sessions", "count", evicted)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context canceled")
	}

	logger.Info("Shutdown complete")
}
