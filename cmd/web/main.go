package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fmcg-dashboard/internal/config"
	"fmcg-dashboard/internal/middleware"
	"fmcg-dashboard/internal/observability"
	"fmcg-dashboard/internal/server"
	"fmcg-dashboard/internal/services"
	"fmcg-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
	sweepInterval  = time.Minute
	visitorIdle    = 3 * time.Minute
	defaultTopN    = 10
)

// pages serves the HTML dashboard and the form upload that feeds it.
type pages struct {
	analytics *services.Analytics
	logger    *slog.Logger
	cfg       *config.Config
	// seed is the dataset loaded at startup, shown when no dataset is selected.
	seed string
}

func (p *pages) data(id string) templates.DashboardData {
	data := templates.DashboardData{
		Strategy:    p.cfg.Forecast.DefaultStrategy,
		Granularity: "day",
		Horizon:     p.cfg.Forecast.DefaultHorizon,
		TopN:        defaultTopN,
	}
	if id == "" {
		id = p.seed
	}
	if id != "" {
		if info, err := p.analytics.Dataset(id); err == nil {
			data.Dataset = &info
		} else {
			data.Error = "The selected dataset has expired. Upload it again to continue."
		}
	}
	return data
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, status int, data templates.DashboardData) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := templates.Dashboard(data).Render(ctx, w); err != nil {
		p.logger.Error("render dashboard", "error", err, "request_id", observability.GetRequestID(r.Context()))
	}
}

func (p *pages) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, p.data(r.URL.Query().Get("dataset")))
}

// handleUpload stores the uploaded file and redirects to its dashboard.
func (p *pages) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		data := p.data("")
		data.Error = "Choose a CSV or Excel file to upload."
		p.render(w, r, http.StatusBadRequest, data)
		return
	}
	defer file.Close()

	info, err := p.analytics.Upload(r.Context(), file, header.Filename)
	if err != nil {
		p.logger.Warn("dashboard upload rejected", "file", header.Filename, "error", err)
		data := p.data("")
		data.Error = fmt.Sprintf("Could not read %s: %v", header.Filename, err)
		p.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	http.Redirect(w, r, "/?dataset="+url.QueryEscape(info.ID), http.StatusSeeOther)
}

func newHandler(cfg *config.Config, analytics *services.Analytics, logger *slog.Logger, limiter *middleware.RateLimiter, seed string) http.Handler {
	p := &pages{analytics: analytics, logger: logger, cfg: cfg, seed: seed}
	templateHandlers := &server.TemplateHandlers{
		Dashboard: p.handleDashboard,
		Upload:    p.handleUpload,
	}

	srv := server.NewServer(analytics, logger, templateHandlers)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
		middleware.BodyLimit(cfg.Upload.MaxBytes, logger),
	)
	return middlewareChain(srv)
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger, nil)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"forecast_strategy", cfg.Forecast.DefaultStrategy,
		"max_datasets", cfg.Upload.MaxDatasets,
	)

	analytics := services.NewAnalytics(services.OptionsFrom(cfg), logger)

	var seed string
	if cfg.Data.CSVFile != "" {
		loadCtx, cancel := context.WithTimeout(ctx, csvLoadTimeout)
		start := time.Now()
		info, err := analytics.LoadFromFile(loadCtx, cfg.Data.CSVFile)
		cancel()
		if err != nil {
			return fmt.Errorf("load %s: %w", cfg.Data.CSVFile, err)
		}
		seed = info.ID
		logger.Info("seed dataset loaded",
			"file", cfg.Data.CSVFile,
			"rows", info.Rows,
			"duration", time.Since(start),
		)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, logger, rateLimiter, seed),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	background, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()
	go analytics.Store().Run(background, sweepInterval, logger)
	go rateLimiter.Cleanup(background, sweepInterval, visitorIdle)

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping dataset sweeper and rate limiter cleanup")
		stopBackground()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}
