package server

import (
	"log/slog"
	"net/http"

	"fmcg-dashboard/internal/handlers"
	"fmcg-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

// TemplateHandlers are the HTML pages, supplied by the binary that owns the
// templates.
type TemplateHandlers struct {
	Dashboard http.HandlerFunc
	Upload    http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	if templateHandlers != nil {
		if templateHandlers.Dashboard != nil {
			s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
		}
		if templateHandlers.Upload != nil {
			s.mux.HandleFunc("POST /upload", templateHandlers.Upload)
		}
	}
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/datasets", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("GET /api/datasets/{id}", s.apiHandlers.HandleDataset)
	s.mux.HandleFunc("DELETE /api/datasets/{id}", s.apiHandlers.HandleDeleteDataset)
	s.mux.HandleFunc("GET /api/datasets/{id}/schema", s.apiHandlers.HandleSchema)
	s.mux.HandleFunc("GET /api/datasets/{id}/series", s.apiHandlers.HandleSeries)
	s.mux.HandleFunc("GET /api/datasets/{id}/forecast", s.apiHandlers.HandleForecast)
	s.mux.HandleFunc("GET /api/datasets/{id}/forecast.csv", s.apiHandlers.HandleForecastCSV)
	s.mux.HandleFunc("GET /api/datasets/{id}/insights", s.apiHandlers.HandleInsights)
	s.mux.HandleFunc("GET /api/datasets/{id}/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/datasets/{id}/heatmap", s.apiHandlers.HandleHeatmap)
	s.mux.HandleFunc("GET /api/datasets/{id}/pricing", s.apiHandlers.HandlePricing)
	s.mux.HandleFunc("GET /api/datasets/{id}/overview", s.apiHandlers.HandleOverview)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/datasets/{id}/forecast", s.sseHandlers.HandleForecast)
	s.mux.HandleFunc("GET /sse/datasets/{id}/insights", s.sseHandlers.HandleInsights)
	s.mux.HandleFunc("GET /sse/datasets/{id}/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
