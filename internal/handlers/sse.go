package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"fmcg-dashboard/internal/errors"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/services"
)

const maxTableRows = 50

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"day":   func(p models.ForecastPoint) string { return p.Period.Format("2006-01-02") },
	"bound": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"pct": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%+.1f%%", *v)
	},
}).Parse(`
{{define "forecast"}}<div id="forecast-content">
<p class="caption">{{.Strategy}} forecast, {{len .Points}} {{.Granularity}} periods from {{.History}} periods of history</p>
<table class="modern-table">
<thead><tr><th>Period</th><th>Predicted</th><th>Lower</th><th>Upper</th></tr></thead>
<tbody>
{{range .Points}}<tr><td>{{day .}}</td><td><strong>{{money .Value}}</strong></td><td>{{bound .Lower}}</td><td>{{bound .Upper}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "insights"}}<div id="insights-content">
<div class="growth">
<span>Growth {{printf "%+.1f%%" .Growth}}</span>
<span>WoW {{pct .WeekOverWeek}}</span>
<span>MoM {{pct .MonthOverMonth}}</span>
{{with .Forecast}}<span>Forecast total {{money .Total}}, peak {{money .PeakValue}} on {{.PeakPeriod.Format "2006-01-02"}}</span>{{end}}
</div>
{{range .Rankings}}<section class="ranking">
<h3>Top {{.Dimension}}</h3>
<table class="modern-table">
<thead><tr><th>{{.Column}}</th><th>Value</th></tr></thead>
<tbody>
{{range .Top}}<tr><td>{{.Category}}</td><td>{{money .Value}}</td></tr>
{{end}}</tbody>
</table>
{{if .LowPerformers}}<p class="low">Low performers: {{range $i, $c := .LowPerformers}}{{if $i}}, {{end}}{{$c.Category}}{{end}}</p>{{end}}
</section>
{{end}}</div>{{end}}

{{define "kpis"}}<div id="kpi-content" class="kpis">
<div class="kpi"><span>Total sales</span><strong>{{money .TotalSales}}</strong></div>
<div class="kpi"><span>Orders</span><strong>{{.TotalOrders}}</strong></div>
<div class="kpi"><span>Quantity</span><strong>{{money .TotalQuantity}}</strong></div>
<div class="kpi"><span>Avg order value</span><strong>{{money .AvgOrderValue}}</strong></div>
</div>{{end}}

{{define "pricing"}}<div id="pricing-content">
{{if .}}<p>Gross {{money .GrossSales}}, net {{money .NetSales}}, discount {{money .TotalDiscount}} ({{printf "%.1f%%" .AvgDiscountPercent}} avg)</p>
<table class="modern-table">
<thead><tr><th>SKU</th><th>Discount</th><th>Discount %</th><th>Net sales</th></tr></thead>
<tbody>
{{range .SKUs}}<tr><td>{{.SKU}}</td><td>{{money .DiscountAmount}}</td><td>{{printf "%.1f%%" .DiscountPercent}}</td><td>{{money .NetSales}}</td></tr>
{{end}}</tbody>
</table>{{else}}<p class="muted">Pricing needs price, quantity, discount and SKU columns.</p>{{end}}
</div>{{end}}

{{define "alert"}}<div id="alerts" class="alert alert-{{.Level}}">{{.Message}}{{with .Details}}: {{.}}{{end}}</div>{{end}}
`))

type alert struct {
	Level   string
	Message string
	Details string
}

// dashboardSignals are the Datastar signals the dashboard sends with each
// request. Non-empty signals override query parameters of the same name.
type dashboardSignals struct {
	Granularity any `json:"granularity"`
	Metric      any `json:"metric"`
	Strategy    any `json:"strategy"`
	Horizon     any `json:"horizon"`
	Dimension   any `json:"dimension"`
	Top         any `json:"top"`
}

// signalString renders a signal the way it would appear in a query string.
// Bound inputs may hold numbers or strings.
func signalString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func render(name string, data any) (string, error) {
	var buf strings.Builder
	err := fragments.ExecuteTemplate(&buf, name, data)
	return buf.String(), err
}

// params merges the request's Datastar signals over its query string.
func (h *SSEHandlers) params(r *http.Request) (url.Values, error) {
	values := r.URL.Query()
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return nil, errors.BadRequestWrap(err, "invalid signals")
	}
	for key, signal := range map[string]any{
		"granularity": signals.Granularity,
		"metric":      signals.Metric,
		"strategy":    signals.Strategy,
		"horizon":     signals.Horizon,
		"dimension":   signals.Dimension,
		"top":         signals.Top,
	} {
		if v := signalString(signal); v != "" {
			values.Set(key, v)
		}
	}
	return values, nil
}

// patch sends an HTML fragment, logging render failures.
func (h *SSEHandlers) patch(sse *datastar.ServerSentEventGenerator, name string, data any) {
	html, err := render(name, data)
	if err != nil {
		h.logger.Error("render fragment", "fragment", name, "error", err)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) signals(sse *datastar.ServerSentEventGenerator, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("marshal signals", "error", err)
		return
	}
	sse.PatchSignals(payload)
}

// patchError shows err in the alert area. Missing columns and short
// histories are expected states, not failures.
func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, err error) {
	appErr := toAppError(err)
	a := alert{Level: "error", Message: "Something went wrong"}
	var e *errors.AppError
	if stderrors.As(appErr, &e) {
		a.Message, a.Details = e.Message, e.Details
		if len(e.Fields) > 0 && e.Details == "" {
			a.Details = strings.Join(e.Fields, ", ")
		}
		if e.StatusCode < 500 {
			a.Level = "warning"
		}
	}
	h.logger.Warn("dashboard update failed", "error", err)
	h.patch(sse, "alert", a)
}

func (h *SSEHandlers) clearAlert(sse *datastar.ServerSentEventGenerator) {
	sse.PatchElements(`<div id="alerts"></div>`)
}

func (h *SSEHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	values, err := h.params(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, err)
		return
	}
	q, err := parseForecastQuery(values)
	if err != nil {
		h.patchError(sse, err)
		return
	}

	f, err := h.analytics.Forecast(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.patchError(sse, err)
		return
	}
	h.signals(sse, map[string]any{"forecastData": f})
	h.patch(sse, "forecast", f)
	h.clearAlert(sse)
}

func (h *SSEHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	values, err := h.params(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, err)
		return
	}
	q, err := parseInsightQuery(values)
	if err != nil {
		h.patchError(sse, err)
		return
	}

	sum, err := h.analytics.Insights(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.patchError(sse, err)
		return
	}
	for i := range sum.Rankings {
		if len(sum.Rankings[i].Top) > maxTableRows {
			sum.Rankings[i].Top = sum.Rankings[i].Top[:maxTableRows]
		}
	}
	h.signals(sse, map[string]any{"summary": sum})
	h.patch(sse, "insights", sum)
	h.clearAlert(sse)
}

// HandleRefreshAll recomputes every dashboard panel in one stream.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	values, err := h.params(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, err)
		return
	}
	q, err := parseInsightQuery(values)
	if err != nil {
		h.patchError(sse, err)
		return
	}

	o, err := h.analytics.Overview(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.patchError(sse, err)
		return
	}

	h.patch(sse, "kpis", o.KPIs)
	h.patch(sse, "insights", o.Summary)
	if o.Pricing != nil && len(o.Pricing.SKUs) > maxTableRows {
		o.Pricing.SKUs = o.Pricing.SKUs[:maxTableRows]
	}
	h.patch(sse, "pricing", o.Pricing)
	if o.Forecast != nil {
		h.patch(sse, "forecast", o.Forecast)
	} else {
		h.patch(sse, "alert", alert{Level: "info", Message: "Not enough history to forecast this selection"})
	}

	h.signals(sse, map[string]any{
		"seriesData":   o.Series.Series.Points,
		"forecastData": o.Forecast,
		"heatmapData":  o.Heatmap,
		"kpis":         o.KPIs,
		"dropped":      o.Series.Dropped,
	})
	if o.Forecast != nil {
		h.clearAlert(sse)
	}
}
