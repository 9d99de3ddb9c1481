package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fmcg-dashboard/internal/models"
)

func sseRequest(h http.HandlerFunc, target, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Datastar-Request", "true")
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestNewSSEHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	logger := testLogger()

	handlers := NewSSEHandlers(analytics, logger)

	if handlers == nil {
		t.Fatal("NewSSEHandlers() returned nil")
	}
	if handlers.analytics != analytics {
		t.Error("NewSSEHandlers() should set analytics field")
	}
	if handlers.logger != logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func TestRender_Forecast(t *testing.T) {
	lower, upper := 90.0, 110.0
	f := models.Forecast{
		Strategy:    "seasonal",
		Granularity: models.Day,
		History:     30,
		Points: []models.ForecastPoint{
			{Period: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 100, Lower: &lower, Upper: &upper},
			{Period: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Value: 105.5},
		},
	}

	html, err := render("forecast", f)
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}

	expectedElements := []string{
		`<div id="forecast-content">`,
		"<table",
		"2024-03-01",
		"<strong>100.00</strong>",
		"90.00",
		"110.00",
		"<strong>105.50</strong>",
		"<td>-</td>",
		"from 30 periods",
	}
	for _, element := range expectedElements {
		if !strings.Contains(html, element) {
			t.Errorf("HTML should contain %q", element)
		}
	}
}

func TestRender_InsightsEscapesCategories(t *testing.T) {
	wow := 12.5
	sum := models.Summary{
		Growth:       -3.26,
		WeekOverWeek: &wow,
		Rankings: []models.Ranking{{
			Dimension:     models.FieldBrand,
			Column:        "Brand",
			Top:           []models.CategoryTotal{{Category: "<script>alert(1)</script>", Value: 10}},
			LowPerformers: []models.CategoryTotal{{Category: "Gamma", Value: 1}, {Category: "Delta", Value: 2}},
		}},
	}

	html, err := render("insights", sum)
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("category names must be escaped")
	}
	for _, element := range []string{"Growth -3.3%", "WoW &#43;12.5%", "MoM n/a", "Top brand", "Gamma, Delta"} {
		if !strings.Contains(html, element) {
			t.Errorf("HTML should contain %q:\n%s", element, html)
		}
	}
}

func TestRender_PricingWithoutColumns(t *testing.T) {
	var p *models.PricingSummary
	html, err := render("pricing", p)
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}
	if !strings.Contains(html, `id="pricing-content"`) || !strings.Contains(html, "Pricing needs") {
		t.Errorf("unexpected pricing placeholder: %s", html)
	}
}

func TestSSEHandlers_HandleForecast(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, testLogger())
	id := uploadDataset(t, analytics, testSalesCSV())

	w := sseRequest(handlers.HandleForecast, "/sse/datasets/"+id+"/forecast?horizon=5", id)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{"datastar-patch-signals", "forecastData", "datastar-patch-elements", "forecast-content", "2023-03-05"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream should contain %q", want)
		}
	}
}

func TestSSEHandlers_HandleForecastSignals(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, testLogger())
	id := uploadDataset(t, analytics, testSalesCSV())

	signals := url.QueryEscape(`{"datasetId":"` + id + `","strategy":"seasonal","horizon":3,"granularity":"day","top":""}`)
	w := sseRequest(handlers.HandleForecast, "/sse/datasets/"+id+"/forecast?horizon=30&datastar="+signals, id)

	body := w.Body.String()
	if !strings.Contains(body, "seasonal forecast, 3 day periods") {
		t.Errorf("signals should override query parameters:\n%s", body)
	}

	w = sseRequest(handlers.HandleForecast, "/sse/datasets/"+id+"/forecast?datastar=%7Bbroken", id)
	if !strings.Contains(w.Body.String(), "invalid signals") {
		t.Errorf("broken signals should be reported:\n%s", w.Body.String())
	}
}

func TestSSEHandlers_Errors(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, testLogger())
	id := uploadDataset(t, analytics, testSalesCSV())
	bare := uploadDataset(t, analytics, "City,Brand\nPune,Alpha\n")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		id      string
		want    []string
	}{
		{"unknown dataset", handlers.HandleForecast, "/forecast", "missing", []string{`id="alerts"`, "dataset not found"}},
		{"short history", handlers.HandleForecast, "/forecast?strategy=seasonal&granularity=month", id, []string{"alert-warning", "not enough history"}},
		{"missing columns", handlers.HandleInsights, "/insights", bare, []string{"alert-warning", "missing required columns", "date, amount"}},
		{"bad parameter", handlers.HandleRefreshAll, "/refresh-all?granularity=hourly", id, []string{"invalid granularity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := sseRequest(tt.handler, "/sse/datasets/"+tt.id+tt.target, tt.id)
			body := w.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("stream should contain %q:\n%s", want, body)
				}
			}
		})
	}
}

func TestSSEHandlers_HandleInsights(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, testLogger())
	id := uploadDataset(t, analytics, testSalesCSV())

	w := sseRequest(handlers.HandleInsights, "/sse/datasets/"+id+"/insights?dimension=city", id)

	body := w.Body.String()
	for _, want := range []string{"insights-content", "Top city", "Pune", "summary"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream should contain %q", want)
		}
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, testLogger())
	id := uploadDataset(t, analytics, testSalesCSV())

	w := sseRequest(handlers.HandleRefreshAll, "/sse/datasets/"+id+"/refresh-all?horizon=3", id)

	body := w.Body.String()
	for _, want := range []string{"kpi-content", "insights-content", "pricing-content", "forecast-content", "seriesData", "heatmapData", "7611.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream should contain %q", want)
		}
	}

	bare := uploadDataset(t, analytics, "Order Date,Amount\n2024-01-01,10\n")
	w = sseRequest(handlers.HandleRefreshAll, "/sse/datasets/"+bare+"/refresh-all", bare)
	body = w.Body.String()
	if !strings.Contains(body, "Not enough history to forecast") {
		t.Errorf("single period dataset should report a missing forecast:\n%s", body)
	}
	if !strings.Contains(body, "Pricing needs") {
		t.Errorf("pricing panel should show its placeholder:\n%s", body)
	}
}
