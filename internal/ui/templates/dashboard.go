// Package templates renders the HTML pages of the dashboard. Panels are
// filled in by Datastar SSE patches after the page loads.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"fmcg-dashboard/internal/models"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

// DashboardData is what the page needs before any data is streamed.
type DashboardData struct {
	Dataset     *models.DatasetInfo
	Strategy    string
	Granularity string
	Horizon     int
	TopN        int
	// Error is shown above the upload form, for example after a rejected upload.
	Error string
}

type signals struct {
	DatasetID   string `json:"datasetId"`
	Granularity string `json:"granularity"`
	Metric      string `json:"metric"`
	Strategy    string `json:"strategy"`
	Horizon     int    `json:"horizon"`
	Dimension   string `json:"dimension"`
	Top         int    `json:"top"`
}

type panel struct {
	title string
	id    string
}

var panels = []panel{
	{"Key figures", "kpi-content"},
	{"Forecast", "forecast-content"},
	{"Top performers", "insights-content"},
	{"Pricing and discounts", "pricing-content"},
}

// Dashboard renders the full page. Without a dataset only the upload form
// is shown.
func Dashboard(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>FMCG Sales Dashboard</title>`)
		p.raw(`<script type="module" src="` + datastarScript + `"></script>`)
		p.raw(`<style>` + styles + `</style></head><body>`)

		p.raw(`<header><h1>FMCG Sales Dashboard</h1><p class="subtitle">Demand forecasts and sales insights from your order exports</p></header>`)

		if data.Dataset != nil {
			sig, err := json.Marshal(signals{
				DatasetID:   data.Dataset.ID,
				Granularity: data.Granularity,
				Metric:      string(models.MetricAmount),
				Strategy:    data.Strategy,
				Horizon:     data.Horizon,
				Top:         data.TopN,
			})
			if err != nil {
				return fmt.Errorf("encode signals: %w", err)
			}
			p.raw(`<main data-signals="` + templ.EscapeString(string(sig)) + `" data-on-load="@get('/sse/datasets/'+$datasetId+'/refresh-all')">`)
		} else {
			p.raw(`<main>`)
		}

		p.raw(`<div id="alerts">`)
		if data.Error != "" {
			p.raw(`<div class="alert alert-error">`)
			p.text(data.Error)
			p.raw(`</div>`)
		}
		p.raw(`</div>`)

		p.raw(`<section class="card upload"><h2>Upload sales data</h2>`)
		p.raw(`<form method="post" action="/upload" enctype="multipart/form-data">`)
		p.raw(`<input type="file" name="file" accept=".csv,.xlsx" required> <button type="submit">Upload</button></form>`)
		if ds := data.Dataset; ds != nil {
			p.raw(`<p class="dataset">Dataset <strong>`)
			p.text(ds.Name)
			p.raw(`</strong>, `)
			p.text(fmt.Sprintf("%d rows, %d columns", ds.Rows, len(ds.Columns)))
			p.raw(` <a href="/api/datasets/`)
			p.text(ds.ID)
			p.raw(`/schema">column mapping</a></p>`)
		}
		p.raw(`</section>`)

		if data.Dataset != nil {
			controls(p)
			for _, pn := range panels {
				p.raw(`<section class="card"><h2>`)
				p.text(pn.title)
				p.raw(`</h2><div id="` + pn.id + `"><p class="muted">Loading...</p></div></section>`)
			}
		}

		p.raw(`</main></body></html>`)
		return p.err
	})
}

func controls(p *printer) {
	p.raw(`<section class="card controls">`)
	p.raw(`<label>Granularity <select data-bind-granularity>`)
	for _, g := range []models.Granularity{models.Day, models.Week, models.Month} {
		p.raw(`<option value="` + string(g) + `">` + string(g) + `</option>`)
	}
	p.raw(`</select></label>`)
	p.raw(`<label>Metric <select data-bind-metric>`)
	for _, m := range []models.Metric{models.MetricAmount, models.MetricQuantity, models.MetricOrders} {
		p.raw(`<option value="` + string(m) + `">` + string(m) + `</option>`)
	}
	p.raw(`</select></label>`)
	p.raw(`<label>Strategy <select data-bind-strategy><option value="tree">tree</option><option value="seasonal">seasonal</option></select></label>`)
	p.raw(`<label>Horizon <input type="number" min="1" data-bind-horizon></label>`)
	p.raw(`<label>Top <input type="number" min="1" data-bind-top></label>`)
	p.raw(`<button data-on-click="@get('/sse/datasets/'+$datasetId+'/refresh-all')">Refresh</button>`)
	p.raw(`<button data-on-click="@get('/sse/datasets/'+$datasetId+'/forecast')">Forecast only</button>`)
	p.raw(`<a data-attr-href="'/api/datasets/'+$datasetId+'/forecast.csv?strategy='+$strategy+'&amp;horizon='+$horizon+'&amp;granularity='+$granularity+'&amp;metric='+$metric">Download forecast CSV</a>`)
	p.raw(`</section>`)
}

// printer writes sequentially and keeps the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

var styles = strings.Join([]string{
	`body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1f2933}`,
	`header{padding:1.5rem 2rem;background:#1f2933;color:#fff}`,
	`main{display:grid;gap:1rem;padding:1.5rem 2rem}`,
	`.card{background:#fff;border-radius:8px;padding:1rem 1.25rem;box-shadow:0 1px 2px rgba(0,0,0,.08)}`,
	`.controls{display:flex;flex-wrap:wrap;gap:1rem;align-items:end}`,
	`.kpis{display:grid;grid-template-columns:repeat(4,1fr);gap:1rem}`,
	`.modern-table{width:100%;border-collapse:collapse}`,
	`.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #e4e7eb;text-align:left}`,
	`.alert{padding:.75rem 1rem;border-radius:6px}`,
	`.alert-error{background:#fde8e8}.alert-warning{background:#fef3c7}.alert-info{background:#e0f2fe}`,
	`.muted{color:#7b8794}`,
}, "")
