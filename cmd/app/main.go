package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/deckscope/internal/ai"
	"github.com/local/deckscope/internal/budget"
	cfgpkg "github.com/local/deckscope/internal/config"
	logpkg "github.com/local/deckscope/internal/logger"
	"github.com/local/deckscope/internal/metrics"
	"github.com/local/deckscope/internal/orchestrator"
	"github.com/local/deckscope/internal/pdf"
	"github.com/local/deckscope/internal/render"
	"github.com/local/deckscope/internal/selector"
	"github.com/local/deckscope/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	metrics.Init()

	ledger, err := budget.NewLedger(budget.Options{
		PerCallCostUSD:    cfg.Budget.PerCallCostUSD,
		DailyLimitUSD:     cfg.Budget.DailyLimitUSD,
		WeeklyLimitUSD:    cfg.Budget.WeeklyLimitUSD,
		MonthlyLimitUSD:   cfg.Budget.MonthlyLimitUSD,
		WarningThreshold:  cfg.Budget.WarningThreshold,
		CriticalThreshold: cfg.Budget.CriticalThreshold,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init budget ledger")
	}

	analyzer := ai.NewFailover(cfg.Analyzer, cfg.Worker.RequestTimeout)

	orch, err := orchestrator.New(orchestrator.Dependencies{
		Reader:   pdf.NewFitzReader(),
		Analyzer: analyzer,
		Ledger:   ledger,
	}, orchestrator.Options{
		Limits: selector.Limits{
			MaxPages: cfg.Analysis.MaxPages,
			MinPages: cfg.Analysis.MinPages,
		},
		ComplexityThreshold: cfg.Analysis.ComplexityThreshold,
		Render: render.Options{
			DPI:          cfg.Analysis.RenderDPI,
			MaxDimension: cfg.Analysis.RenderMaxDimension,
			JPEGQuality:  cfg.Analysis.RenderJPEGQuality,
		},
		Concurrency:       cfg.Worker.Concurrency,
		RequestTimeout:    cfg.Worker.RequestTimeout,
		AnalyzerMaxTokens: cfg.Analyzer.MaxTokens,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init orchestrator")
	}

	mux := http.NewServeMux()
	web.New(orch, ledger).RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
