package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexchenyu/OpenDeepWiki/internal/api"
	"github.com/alexchenyu/OpenDeepWiki/internal/budget"
	"github.com/alexchenyu/OpenDeepWiki/internal/config"
	"github.com/alexchenyu/OpenDeepWiki/internal/generate"
	"github.com/alexchenyu/OpenDeepWiki/internal/ingest"
	"github.com/alexchenyu/OpenDeepWiki/internal/llmretry"
	"github.com/alexchenyu/OpenDeepWiki/internal/memstore"
	"github.com/alexchenyu/OpenDeepWiki/internal/pipeline"
	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	estimator := budget.NewEstimator(cfg.CharsPerToken)
	memory := memstore.NewClient(cfg.MemoryStoreURL, cfg.MemoryStoreAPIKey, cfg.MemoryStoreRPS)
	st := store.NewMemory()

	policy := llmretry.Policy{
		MinAttempts:      3,
		GlobalCap:        cfg.OuterRetryCap,
		JSONCap:          cfg.JSONRetryCap,
		ModelCap:         cfg.ModelRetryCap,
		RateLimitCeiling: cfg.RateLimitCeiling,
		BackoffBase:      cfg.BackoffBase,
		BackoffPenalty:   cfg.BackoffPenalty,
		BackoffCap:       cfg.BackoffCap,
	}

	session := generate.NewClaudeSession(cfg.AnthropicAPIKey, cfg.AnthropicModel, int64(cfg.CatalogueMaxTokens))
	stage := generate.NewStage(session, policy, generate.Options{
		FirstAttemptTimeout: cfg.FirstAttemptTimeout,
		LaterAttemptTimeout: cfg.LaterAttemptTimeout,
		MaxStreamTurns:      cfg.InnerRetryCap * 4,
		WriteToolCap:        cfg.WriteToolCap,
		MaxReadTokens:       cfg.MaxReadTokens,
		Estimator:           estimator,
	}, log)

	contentBudget := budget.Available(cfg.ContextWindow,
		cfg.SystemReserve, cfg.FormatReserve, cfg.OutputReserve, cfg.HistoryReserve)
	ingestor := ingest.NewIngestor(st, memory, estimator, ingest.Options{
		Workers:          cfg.IngestWorkers,
		Retries:          cfg.IngestRetries,
		BreakerThreshold: cfg.BreakerThreshold,
		ProgressEvery:    cfg.ProgressEvery,
		MaxContentTokens: contentBudget,
	}, log)

	p := pipeline.New(stage, st, ingestor, pipeline.Options{
		RunTTL:             cfg.RunTTL,
		LargeRepoThreshold: cfg.LargeRepoThreshold,
	}, log)
	p.Start(ctx)

	srv := api.NewServer(p, st, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		p.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting opendeepwiki", "port", cfg.Port, "model", cfg.AnthropicModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
