package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/llm"
	"github.com/reasonloop/reasonloop/internal/pipeline"
	"github.com/reasonloop/reasonloop/internal/prompts"
	"github.com/reasonloop/reasonloop/internal/tools"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <query>\n", os.Args[0])
		os.Exit(2)
	}
	query := os.Args[1]

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Everything up to pipeline construction is configuration: failures here
	// are fatal by design, before any reasoning starts.
	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("Configuration error", zap.Error(err))
	}
	if cfg.Debug {
		if dev, devErr := zap.NewDevelopment(); devErr == nil {
			logger = dev
		}
	}

	registry := prompts.NewRegistry(logger.Named("prompts"))
	if cfg.PromptsDir != "" {
		if err := registry.LoadDirectory(cfg.PromptsDir); err != nil {
			logger.Fatal("Prompt template loading failed", zap.Error(err))
		}
	}
	if err := registry.MustHave(prompts.All()...); err != nil {
		logger.Fatal("Prompt template set incomplete", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot reload of the prompt overlay is best-effort after the startup
	// validation above.
	if cfg.PromptsDir != "" {
		if watcher, werr := prompts.NewWatcher(registry, cfg.PromptsDir, logger.Named("prompts")); werr == nil {
			go watcher.Run(ctx)
		} else {
			logger.Warn("Prompt hot reload unavailable", zap.Error(werr))
		}
	}

	var cache *llm.Cache
	if cfg.Cache.Enabled {
		cache, err = llm.NewCache(cfg.Cache, logger.Named("cache"))
		if err != nil {
			logger.Fatal("Cache configuration error", zap.Error(err))
		}
		defer cache.Close()
	}

	invoker := llm.NewClient(cfg.LLM, cache, logger.Named("llm"))

	toolURL := os.Getenv("TOOL_SERVICE_URL")
	if toolURL == "" {
		toolURL = "http://tool-service:8100"
	}
	executor := tools.NewExecutor(toolURL, cfg.LLM.Timeout, logger.Named("tools"))

	pipe, err := pipeline.New(invoker, executor, registry, cfg, logger.Named("pipeline"))
	if err != nil {
		logger.Fatal("Pipeline construction failed", zap.Error(err))
	}

	// Metrics endpoint, available for the lifetime of the process.
	metricsPort := getEnvOrDefaultInt("METRICS_PORT", 2112)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:         ":" + strconv.Itoa(metricsPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		logger.Info("Metrics server listening", zap.Int("port", metricsPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Cancel the in-flight query on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal; cancelling", zap.String("signal", sig.String()))
		cancel()
	}()

	answer, err := pipe.Run(ctx, query)
	if err != nil {
		logger.Fatal("Query aborted", zap.Error(err))
	}
	fmt.Println(answer)
}

func getEnvOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
