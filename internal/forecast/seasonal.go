package forecast

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"fmcg-dashboard/internal/models"
)

const (
	backfitIterations = 50
	backfitTolerance  = 1e-10
)

// seasonLengths are the cycle lengths, in periods, modelled per granularity.
var seasonLengths = map[models.Granularity][]int{
	models.Day:   {7, 365},
	models.Week:  {52},
	models.Month: {12},
}

// MinSeasonalPeriods is the shortest history the seasonal strategy accepts
// for g: two full cycles of its shortest season.
func MinSeasonalPeriods(g models.Granularity) int {
	lengths := seasonLengths[g]
	if len(lengths) == 0 {
		return 2
	}
	return 2 * slices.Min(lengths)
}

// seasonal is an additive decomposition: a least-squares linear trend plus
// one seasonal index per cycle position, fitted jointly by backfitting.
// A cycle is only modelled when the history covers it at least twice.
type seasonal struct {
	opts Options
}

func (f *seasonal) Strategy() Strategy { return StrategySeasonal }

func (f *seasonal) Forecast(s models.Series, m models.Metric, horizon int) (models.Forecast, error) {
	h, err := prepare(StrategySeasonal, s, m, horizon, f.opts)
	if err != nil {
		return models.Forecast{}, err
	}
	n := len(h.values)
	if need := MinSeasonalPeriods(h.granularity); n < need {
		return models.Forecast{}, &InsufficientDataError{Strategy: StrategySeasonal, Need: need, Have: n}
	}

	fit := fitDecomposition(h.values, seasonLengths[h.granularity])
	z := distuv.UnitNormal.Quantile(0.5 + f.opts.Interval/2)

	out := newForecast(StrategySeasonal, h, m, horizon)
	for i, period := range futurePeriods(h.granularity, h.last, horizon) {
		step := i + 1
		value := fit.at(n - 1 + step)
		width := z * fit.sigma * math.Sqrt(1+float64(step)/float64(n))
		lower, upper := value-width, value+width
		out.Points = append(out.Points, models.ForecastPoint{
			Period: period,
			Value:  value,
			Lower:  &lower,
			Upper:  &upper,
		})
	}
	return out, nil
}

type cycle struct {
	length int
	index  []float64
}

type decomposition struct {
	intercept float64
	slope     float64
	cycles    []cycle
	sigma     float64
}

func (d *decomposition) at(t int) float64 {
	return d.intercept + d.slope*float64(t) + d.seasonalAt(t, -1)
}

// seasonalAt sums the seasonal indices at position t, leaving out cycle skip.
func (d *decomposition) seasonalAt(t, skip int) float64 {
	var v float64
	for c, cy := range d.cycles {
		if c != skip {
			v += cy.index[t%cy.length]
		}
	}
	return v
}

func fitDecomposition(y []float64, lengths []int) *decomposition {
	n := len(y)
	d := &decomposition{}
	for _, l := range lengths {
		if n >= 2*l {
			d.cycles = append(d.cycles, cycle{length: l, index: make([]float64, l)})
		}
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	work := make([]float64, n)

	for iter := 0; iter < backfitIterations; iter++ {
		for i := range y {
			work[i] = y[i] - d.seasonalAt(i, -1)
		}
		alpha, beta := stat.LinearRegression(x, work, nil, false)
		done := iter > 0 &&
			math.Abs(alpha-d.intercept) < backfitTolerance &&
			math.Abs(beta-d.slope) < backfitTolerance
		d.intercept, d.slope = alpha, beta

		for c := range d.cycles {
			d.fitCycle(c, y)
		}
		if done || len(d.cycles) == 0 {
			break
		}
	}

	for i := range y {
		work[i] = y[i] - d.at(i)
	}
	d.sigma = stat.StdDev(work, nil)
	if math.IsNaN(d.sigma) {
		d.sigma = 0
	}
	return d
}

// fitCycle sets the indices of cycle c to the centred mean residual per
// position, holding the trend and the other cycles fixed.
func (d *decomposition) fitCycle(c int, y []float64) {
	cy := d.cycles[c]
	sums := make([]float64, cy.length)
	counts := make([]float64, cy.length)
	for i, v := range y {
		p := i % cy.length
		sums[p] += v - d.intercept - d.slope*float64(i) - d.seasonalAt(i, c)
		counts[p]++
	}
	floats.Div(sums, counts)
	floats.AddConst(-stat.Mean(sums, nil), sums)
	copy(cy.index, sums)
}
