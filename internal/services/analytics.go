package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/config"
	"fmcg-dashboard/internal/forecast"
	"fmcg-dashboard/internal/ingest"
	"fmcg-dashboard/internal/insights"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/observability"
	"fmcg-dashboard/internal/schema"
)

// Options configures the analytics service.
type Options struct {
	MaxDatasets     int
	DatasetTTL      time.Duration
	CacheDir        string
	DefaultStrategy forecast.Strategy
	DefaultHorizon  int
	Forecast        forecast.Options
}

func DefaultOptions() Options {
	return Options{
		MaxDatasets:     20,
		DatasetTTL:      2 * time.Hour,
		DefaultStrategy: forecast.StrategyTree,
		DefaultHorizon:  12,
		Forecast:        forecast.DefaultOptions(),
	}
}

// OptionsFrom maps the loaded configuration onto service options.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		MaxDatasets:     cfg.Upload.MaxDatasets,
		DatasetTTL:      cfg.Upload.DatasetTTL,
		CacheDir:        cfg.Data.CacheDir,
		DefaultStrategy: forecast.Strategy(cfg.Forecast.DefaultStrategy),
		DefaultHorizon:  cfg.Forecast.DefaultHorizon,
		Forecast: forecast.Options{
			MaxHorizon: cfg.Forecast.MaxHorizon,
			MaxHistory: cfg.Forecast.MaxHistory,
			Trees:      cfg.Forecast.Trees,
			Seed:       cfg.Forecast.Seed,
			Interval:   cfg.Forecast.Interval,
		},
	}
}

// Query selects the slice of a dataset a view is computed over. Filters are
// keyed by canonical dimension; each must be resolved in the dataset.
type Query struct {
	Granularity models.Granularity
	Metric      models.Metric
	From        time.Time
	To          time.Time
	Filters     map[models.Field][]string
}

// ForecastQuery is a Query plus the forecast parameters. Zero values take
// the service defaults.
type ForecastQuery struct {
	Query
	Strategy forecast.Strategy
	Horizon  int
}

// InsightQuery is a ForecastQuery plus ranking parameters. WithForecast adds
// a forecast summary when the series is long enough.
type InsightQuery struct {
	ForecastQuery
	Dimensions   []models.Field
	TopN         int
	Threshold    *float64
	WithForecast bool
}

// Overview bundles every dashboard view of one query. Optional views are nil
// when the dataset lacks their columns or history.
type Overview struct {
	Dataset  models.DatasetInfo     `json:"dataset"`
	KPIs     models.KPIs            `json:"kpis"`
	Series   aggregate.Result       `json:"series"`
	Summary  models.Summary         `json:"summary"`
	Heatmap  models.Heatmap         `json:"heatmap"`
	Forecast *models.Forecast       `json:"forecast,omitempty"`
	Pricing  *models.PricingSummary `json:"pricing,omitempty"`
}

type Analytics struct {
	store     *Store
	loader    *ingest.FileLoader
	opts      Options
	logger    *slog.Logger
	startedAt time.Time

	uploads   atomic.Int64
	forecasts atomic.Int64
	rowsRead  atomic.Int64
}

func NewAnalytics(opts Options, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = forecast.StrategyTree
	}
	if opts.DefaultHorizon <= 0 {
		opts.DefaultHorizon = DefaultOptions().DefaultHorizon
	}
	return &Analytics{
		store:     NewStore(opts.MaxDatasets, opts.DatasetTTL),
		loader:    ingest.NewFileLoader(opts.CacheDir, logger),
		opts:      opts,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Store exposes the dataset store, mainly so callers can run its sweeper.
func (a *Analytics) Store() *Store {
	return a.store
}

// Upload parses a CSV or XLSX stream and stores it. Column resolution runs
// once here; missing fields only fail the views that need them.
func (a *Analytics) Upload(ctx context.Context, r io.Reader, name string) (models.DatasetInfo, error) {
	_, span := observability.StartSpan(ctx, "dataset.upload")
	defer span.End(ctx, a.logger)
	span.SetTag("file", name)

	ds, err := ingest.Read(r, name)
	if err != nil {
		span.SetError(err)
		return models.DatasetInfo{}, err
	}
	ds.LoadedAt = time.Now()
	return a.register(ctx, ds), nil
}

// LoadFromFile reads a dataset from disk through the parse cache.
func (a *Analytics) LoadFromFile(ctx context.Context, path string) (models.DatasetInfo, error) {
	ds, err := a.loader.Load(ctx, path)
	if err != nil {
		return models.DatasetInfo{}, err
	}
	return a.register(ctx, ds), nil
}

func (a *Analytics) register(ctx context.Context, ds *models.Dataset) models.DatasetInfo {
	id := a.store.Put(ds)
	a.uploads.Add(1)
	a.rowsRead.Add(int64(ds.Len()))

	stored, _ := a.Dataset(id)
	a.logger.InfoContext(ctx, "dataset stored",
		"dataset_id", id,
		"name", ds.Name,
		"rows", ds.Len(),
		"resolved", len(stored.Schema),
		"request_id", observability.GetRequestID(ctx))
	return stored
}

// Dataset returns the stored dataset's summary.
func (a *Analytics) Dataset(id string) (models.DatasetInfo, error) {
	e, err := a.store.get(id)
	if err != nil {
		return models.DatasetInfo{}, err
	}
	return info(e), nil
}

// Delete drops a stored dataset.
func (a *Analytics) Delete(id string) error {
	if !a.store.Delete(id) {
		return ErrDatasetNotFound
	}
	a.logger.Info("dataset deleted", "dataset_id", id)
	return nil
}

// Resolution returns how each canonical field was matched.
func (a *Analytics) Resolution(id string) (schema.Report, error) {
	e, err := a.store.get(id)
	if err != nil {
		return schema.Report{}, err
	}
	return e.report, nil
}

func info(e *entry) models.DatasetInfo {
	return models.DatasetInfo{
		ID:       e.dataset.ID,
		Name:     e.dataset.Name,
		Rows:     e.dataset.Len(),
		Columns:  e.dataset.Columns,
		Schema:   e.report.Schema,
		LoadedAt: e.dataset.LoadedAt,
	}
}

func (a *Analytics) request(e *entry, q Query) (aggregate.Request, error) {
	req, err := aggregate.RequestFor(e.report.Schema, q.Granularity)
	if err != nil {
		return aggregate.Request{}, err
	}
	for _, dim := range models.Dimensions {
		values, ok := q.Filters[dim]
		if !ok {
			continue
		}
		if err := schema.Require(e.report.Schema, dim); err != nil {
			return aggregate.Request{}, err
		}
		req.Filters = append(req.Filters, aggregate.Filter{Column: e.report.Schema[dim], Values: values})
	}
	req.From, req.To = q.From, q.To
	return req, nil
}

// Series aggregates the dataset into one point per period.
func (a *Analytics) Series(ctx context.Context, id string, q Query) (aggregate.Result, error) {
	e, err := a.store.get(id)
	if err != nil {
		return aggregate.Result{}, err
	}
	return a.series(ctx, e, q)
}

func (a *Analytics) series(ctx context.Context, e *entry, q Query) (aggregate.Result, error) {
	req, err := a.request(e, q)
	if err != nil {
		return aggregate.Result{}, err
	}
	res, err := aggregate.Aggregate(e.dataset, req)
	if err != nil {
		return aggregate.Result{}, err
	}
	if res.Dropped > 0 {
		a.logger.DebugContext(ctx, "rows dropped during aggregation",
			"dataset_id", e.dataset.ID,
			"dates", res.Drops.Dates,
			"numbers", res.Drops.Numbers)
	}
	return res, nil
}

// Forecast projects the query's series over the requested horizon.
func (a *Analytics) Forecast(ctx context.Context, id string, q ForecastQuery) (models.Forecast, error) {
	e, err := a.store.get(id)
	if err != nil {
		return models.Forecast{}, err
	}
	res, err := a.series(ctx, e, q.Query)
	if err != nil {
		return models.Forecast{}, err
	}
	return a.forecast(ctx, res.Series, q)
}

func (a *Analytics) forecast(ctx context.Context, s models.Series, q ForecastQuery) (models.Forecast, error) {
	if q.Strategy == "" {
		q.Strategy = a.opts.DefaultStrategy
	}
	if q.Horizon == 0 {
		q.Horizon = a.opts.DefaultHorizon
	}
	if q.Metric == "" {
		q.Metric = models.MetricAmount
	}

	ctx, span := observability.StartSpan(ctx, "forecast.fit")
	defer span.End(ctx, a.logger)
	span.SetTag("strategy", string(q.Strategy))
	span.SetTag("horizon", strconv.Itoa(q.Horizon))
	span.SetTag("periods", strconv.Itoa(s.Len()))

	f, err := forecast.New(q.Strategy, a.opts.Forecast)
	if err != nil {
		span.SetError(err)
		return models.Forecast{}, err
	}
	out, err := f.Forecast(s, q.Metric, q.Horizon)
	if err != nil {
		span.SetError(err)
		return models.Forecast{}, err
	}
	a.forecasts.Add(1)
	return out, nil
}

// Insights summarizes growth and rankings for the query, plus a forecast
// summary when requested and the history allows it.
func (a *Analytics) Insights(ctx context.Context, id string, q InsightQuery) (models.Summary, error) {
	e, err := a.store.get(id)
	if err != nil {
		return models.Summary{}, err
	}
	res, err := a.series(ctx, e, q.Query)
	if err != nil {
		return models.Summary{}, err
	}
	var f *models.Forecast
	if q.WithForecast {
		if f, err = a.optionalForecast(ctx, res.Series, q.ForecastQuery); err != nil {
			return models.Summary{}, err
		}
	}
	return a.summarize(e, q, res.Series, f)
}

func (a *Analytics) summarize(e *entry, q InsightQuery, s models.Series, f *models.Forecast) (models.Summary, error) {
	req, err := a.request(e, q.Query)
	if err != nil {
		return models.Summary{}, err
	}
	rows, err := aggregate.FilterRows(e.dataset, req)
	if err != nil {
		return models.Summary{}, err
	}
	return insights.Summarize(insights.Request{
		Series:     s,
		Metric:     q.Metric,
		Dataset:    rows,
		Schema:     e.report.Schema,
		Forecast:   f,
		Dimensions: q.Dimensions,
		TopN:       q.TopN,
		Threshold:  q.Threshold,
	})
}

// optionalForecast treats a series that cannot be projected, because it is
// too short or ends at the edge of the calendar, as "no forecast".
func (a *Analytics) optionalForecast(ctx context.Context, s models.Series, q ForecastQuery) (*models.Forecast, error) {
	f, err := a.forecast(ctx, s, q)
	if errors.Is(err, forecast.ErrInsufficientData) || errors.Is(err, forecast.ErrOutOfRange) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// KPIs returns the headline figures for the query's rows.
func (a *Analytics) KPIs(ctx context.Context, id string, q Query) (models.KPIs, error) {
	e, err := a.store.get(id)
	if err != nil {
		return models.KPIs{}, err
	}
	records, req, err := a.scan(e, q)
	if err != nil {
		return models.KPIs{}, err
	}
	return insights.KPIs(records, req.OrderColumn != ""), nil
}

// Heatmap returns summed amounts by day of month and month.
func (a *Analytics) Heatmap(ctx context.Context, id string, q Query) (models.Heatmap, error) {
	e, err := a.store.get(id)
	if err != nil {
		return models.Heatmap{}, err
	}
	records, _, err := a.scan(e, q)
	if err != nil {
		return models.Heatmap{}, err
	}
	return insights.Heatmap(records), nil
}

func (a *Analytics) scan(e *entry, q Query) ([]aggregate.Record, aggregate.Request, error) {
	req, err := a.request(e, q)
	if err != nil {
		return nil, req, err
	}
	records, _, err := aggregate.Scan(e.dataset, req)
	return records, req, err
}

// Pricing returns discount metrics for the query's rows.
func (a *Analytics) Pricing(ctx context.Context, id string, q Query) (models.PricingSummary, error) {
	e, err := a.store.get(id)
	if err != nil {
		return models.PricingSummary{}, err
	}
	return a.pricing(e, q)
}

func (a *Analytics) pricing(e *entry, q Query) (models.PricingSummary, error) {
	if err := schema.Require(e.report.Schema, insights.PricingFields...); err != nil {
		return models.PricingSummary{}, err
	}
	req, err := a.request(e, q)
	if err != nil {
		return models.PricingSummary{}, err
	}
	rows, err := aggregate.FilterRows(e.dataset, req)
	if err != nil {
		return models.PricingSummary{}, err
	}
	return insights.Pricing(rows, e.report.Schema)
}

// Overview computes every dashboard view of the query concurrently.
func (a *Analytics) Overview(ctx context.Context, id string, q InsightQuery) (Overview, error) {
	e, err := a.store.get(id)
	if err != nil {
		return Overview{}, err
	}
	ctx, span := observability.StartSpan(ctx, "dataset.overview")
	defer span.End(ctx, a.logger)

	out := Overview{Dataset: info(e)}
	res, err := a.series(ctx, e, q.Query)
	if err != nil {
		span.SetError(err)
		return Overview{}, err
	}
	out.Series = res

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, req, err := a.scan(e, q.Query)
		if err != nil {
			return err
		}
		out.KPIs = insights.KPIs(records, req.OrderColumn != "")
		out.Heatmap = insights.Heatmap(records)
		return nil
	})
	g.Go(func() error {
		f, err := a.optionalForecast(ctx, res.Series, q.ForecastQuery)
		if err != nil {
			return err
		}
		out.Forecast = f
		sum, err := a.summarize(e, q, res.Series, f)
		if err != nil {
			return err
		}
		out.Summary = sum
		return nil
	})
	g.Go(func() error {
		p, err := a.pricing(e, q.Query)
		if errors.Is(err, schema.ErrMissingColumns) {
			return nil
		}
		if err != nil {
			return err
		}
		out.Pricing = &p
		return nil
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	return out, nil
}

// Stats reports service counters for monitoring.
func (a *Analytics) Stats() map[string]any {
	return map[string]any{
		"datasets":     a.store.Len(),
		"uploads":      a.uploads.Load(),
		"forecasts":    a.forecasts.Load(),
		"rows_read":    a.rowsRead.Load(),
		"uptime":       time.Since(a.startedAt).Round(time.Second).String(),
		"strategy":     a.opts.DefaultStrategy,
		"max_datasets": a.opts.MaxDatasets,
		"dataset_ttl":  a.opts.DatasetTTL.String(),
	}
}
