package handlers

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fmcg-dashboard/internal/aggregate"
	"fmcg-dashboard/internal/errors"
	"fmcg-dashboard/internal/forecast"
	"fmcg-dashboard/internal/ingest"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/schema"
	"fmcg-dashboard/internal/services"
)

// parseQuery reads the common view parameters: granularity, metric, from,
// to and one comma separated filter per dimension (city=Pune,Delhi).
func parseQuery(v url.Values) (services.Query, error) {
	var q services.Query
	var err error

	if q.Granularity, err = models.ParseGranularity(v.Get("granularity"), models.Day); err != nil {
		return q, errors.BadRequestWrap(err, "invalid granularity").WithFields("granularity")
	}
	if q.Metric, err = models.ParseMetric(v.Get("metric"), models.MetricAmount); err != nil {
		return q, errors.BadRequestWrap(err, "invalid metric").WithFields("metric")
	}
	if q.From, err = parseDate(v, "from"); err != nil {
		return q, err
	}
	if q.To, err = parseDate(v, "to"); err != nil {
		return q, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, errors.BadRequest("to must not be before from").WithFields("from", "to")
	}

	for _, dim := range models.Dimensions {
		if !v.Has(string(dim)) {
			continue
		}
		if values := splitList(v.Get(string(dim))); len(values) > 0 {
			if q.Filters == nil {
				q.Filters = make(map[models.Field][]string)
			}
			q.Filters[dim] = values
		}
	}
	return q, nil
}

func parseForecastQuery(v url.Values) (services.ForecastQuery, error) {
	q, err := parseQuery(v)
	if err != nil {
		return services.ForecastQuery{}, err
	}
	fq := services.ForecastQuery{Query: q}
	if fq.Strategy, err = forecast.ParseStrategy(v.Get("strategy"), ""); err != nil {
		return fq, errors.BadRequestWrap(err, "invalid forecast strategy").WithFields("strategy")
	}
	if fq.Horizon, err = parseInt(v, "horizon", 0); err != nil {
		return fq, err
	}
	return fq, nil
}

func parseInsightQuery(v url.Values) (services.InsightQuery, error) {
	fq, err := parseForecastQuery(v)
	if err != nil {
		return services.InsightQuery{}, err
	}
	iq := services.InsightQuery{ForecastQuery: fq, WithForecast: true}

	for _, name := range splitList(v.Get("dimension")) {
		f := models.Field(strings.ToLower(name))
		if !f.IsDimension() {
			return iq, errors.BadRequest("unknown dimension " + strconv.Quote(name)).WithFields("dimension")
		}
		iq.Dimensions = append(iq.Dimensions, f)
	}
	if iq.TopN, err = parseInt(v, "top", 0); err != nil {
		return iq, err
	}
	if raw := v.Get("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return iq, errors.BadRequestWrap(err, "invalid threshold").WithFields("threshold")
		}
		iq.Threshold = &t
	}
	if raw := v.Get("forecast"); raw != "" {
		with, err := strconv.ParseBool(raw)
		if err != nil {
			return iq, errors.BadRequestWrap(err, "invalid forecast flag").WithFields("forecast")
		}
		iq.WithForecast = with
	}
	return iq, nil
}

func parseDate(v url.Values, key string) (time.Time, error) {
	raw := v.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := models.ParseTime(raw)
	if err != nil {
		return time.Time{}, errors.BadRequestWrap(err, "invalid "+key+" date").WithFields(key)
	}
	return t, nil
}

func parseInt(v url.Values, key string, fallback int) (int, error) {
	raw := v.Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.BadRequest(key + " must be a positive integer").WithFields(key)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// toAppError maps domain errors onto API error codes.
func toAppError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.PayloadTooLarge(tooLarge.Limit)
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var missing *schema.MissingColumnsError
	switch {
	case stderrors.As(err, &missing):
		fields := make([]string, len(missing.Missing))
		for i, f := range missing.Missing {
			fields[i] = string(f)
		}
		return errors.MissingColumns(err, fields).WithDetails(err.Error())
	case stderrors.Is(err, services.ErrDatasetNotFound):
		return errors.NotFound("dataset not found")
	case stderrors.Is(err, forecast.ErrInsufficientData):
		return errors.InsufficientData(err)
	case stderrors.Is(err, ingest.ErrUnsupportedFormat):
		return errors.UnsupportedMedia(err)
	case stderrors.Is(err, ingest.ErrMalformed):
		return errors.ValidationWrap(err, "uploaded file could not be parsed").WithDetails(err.Error())
	case stderrors.Is(err, forecast.ErrOutOfRange):
		return errors.ValidationWrap(err, "dataset dates run too far into the future to forecast").WithDetails(err.Error())
	case stderrors.Is(err, ingest.ErrEmptyFile):
		return errors.ValidationWrap(err, "uploaded file is empty").WithDetails(err.Error())
	case stderrors.Is(err, forecast.ErrInvalidHorizon),
		stderrors.Is(err, forecast.ErrUnknownStrategy),
		stderrors.Is(err, aggregate.ErrInvalidGranularity),
		stderrors.Is(err, aggregate.ErrFinerGranularity),
		stderrors.Is(err, aggregate.ErrUnknownColumn):
		return errors.BadRequestWrap(err, "invalid request").WithDetails(err.Error())
	}
	return errors.InternalWrap(err, "An unexpected error occurred")
}
