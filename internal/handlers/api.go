package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fmcg-dashboard/internal/errors"
	"fmcg-dashboard/internal/forecast"
	"fmcg-dashboard/internal/observability"
	"fmcg-dashboard/internal/services"
)

// uploadMemory is how much of a multipart upload is held in memory before
// spilling to temporary files.
const uploadMemory = 8 << 20

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
}

// HandleUpload stores the multipart "file" field as a new dataset.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		h.fail(w, r, errors.BadRequestWrap(err, "expected a multipart form upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, errors.BadRequestWrap(err, "missing file field").WithFields("file"))
		return
	}
	defer file.Close()

	info, err := h.analytics.Upload(r.Context(), file, header.Filename)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/datasets/"+info.ID)
	errors.WriteSuccessStatus(w, http.StatusCreated, info)
}

func (h *APIHandlers) HandleDataset(w http.ResponseWriter, r *http.Request) {
	info, err := h.analytics.Dataset(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, info)
}

func (h *APIHandlers) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.analytics.Delete(r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSchema reports how each canonical field was matched to a column.
func (h *APIHandlers) HandleSchema(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Resolution(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, report)
}

func (h *APIHandlers) HandleSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.analytics.Series(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, res)
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q, err := parseForecastQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.analytics.Forecast(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, f)
}

// HandleForecastCSV serves the forecast as a CSV attachment.
func (h *APIHandlers) HandleForecastCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseForecastQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.analytics.Forecast(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := forecast.WriteCSV(&buf, f); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="forecast-%s-%s.csv"`, f.Strategy, f.Granularity))
	w.Write(buf.Bytes())
}

func (h *APIHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	q, err := parseInsightQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.analytics.Insights(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, sum)
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	k, err := h.analytics.KPIs(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, k)
}

func (h *APIHandlers) HandleHeatmap(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	hm, err := h.analytics.Heatmap(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, hm)
}

func (h *APIHandlers) HandlePricing(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.analytics.Pricing(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, p)
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	q, err := parseInsightQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.analytics.Overview(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, o)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Stats(), map[string]string{
		"Cache-Control": "no-store",
	})
}
