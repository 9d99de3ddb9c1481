package forecast

import (
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"fmcg-dashboard/internal/models"
)

// MinTreePeriods is the shortest history the tree strategy fits a model to.
// Shorter histories get a constant forecast of their mean.
const MinTreePeriods = 3

const minLeafSize = 1

// forest is a bagged ensemble of regression trees over the period ordinal.
// Bootstrap samples come from a PRNG seeded per tree, so forecasts are
// reproducible for a given seed.
type forest struct {
	opts Options
}

func (f *forest) Strategy() Strategy { return StrategyTree }

func (f *forest) Forecast(s models.Series, m models.Metric, horizon int) (models.Forecast, error) {
	h, err := prepare(StrategyTree, s, m, horizon, f.opts)
	if err != nil {
		return models.Forecast{}, err
	}
	n := len(h.values)
	out := newForecast(StrategyTree, h, m, horizon)
	periods := futurePeriods(h.granularity, h.last, horizon)

	if n < MinTreePeriods {
		mean := stat.Mean(h.values, nil)
		for _, p := range periods {
			out.Points = append(out.Points, models.ForecastPoint{Period: p, Value: mean})
		}
		return out, nil
	}

	trees := f.grow(h.values)
	preds := make([]float64, len(trees))
	for i, p := range periods {
		x := float64(n - 1 + i + 1)
		for t, tree := range trees {
			preds[t] = tree.predict(x)
		}
		out.Points = append(out.Points, models.ForecastPoint{Period: p, Value: stat.Mean(preds, nil)})
	}
	return out, nil
}

// grow fits opts.Trees trees in parallel, one bootstrap sample each.
func (f *forest) grow(y []float64) []*node {
	trees := make([]*node, f.opts.Trees)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(f.opts.Seed, uint64(t)))
			xs, ys := bootstrap(rng, y)
			trees[t] = split(xs, ys)
			return nil
		})
	}
	_ = g.Wait()
	return trees
}

// bootstrap draws len(y) ordinals with replacement and returns them sorted
// with their values.
func bootstrap(rng *rand.Rand, y []float64) ([]float64, []float64) {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	slices.Sort(idx)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, j := range idx {
		xs[i] = float64(j)
		ys[i] = y[j]
	}
	return xs, ys
}

type node struct {
	threshold   float64
	value       float64
	left, right *node
}

func (nd *node) predict(x float64) float64 {
	for nd.left != nil {
		if x <= nd.threshold {
			nd = nd.left
		} else {
			nd = nd.right
		}
	}
	return nd.value
}

// split grows a CART regression tree on xs (sorted ascending). Each node
// takes the threshold between distinct neighbouring ordinals that minimises
// the summed squared error of its children, and stops when no split
// improves on the parent.
func split(xs, ys []float64) *node {
	nd := &node{value: stat.Mean(ys, nil)}
	n := len(xs)
	if n < 2*minLeafSize {
		return nd
	}

	var sum, sq float64
	for _, v := range ys {
		sum += v
		sq += v * v
	}
	best, bestCost := -1, sq-sum*sum/float64(n)
	const eps = 1e-12

	var leftSum, leftSq float64
	for i := 0; i < n-1; i++ {
		leftSum += ys[i]
		leftSq += ys[i] * ys[i]
		if xs[i] == xs[i+1] {
			continue
		}
		nl, nr := float64(i+1), float64(n-i-1)
		if i+1 < minLeafSize || n-i-1 < minLeafSize {
			continue
		}
		rightSum, rightSq := sum-leftSum, sq-leftSq
		cost := leftSq - leftSum*leftSum/nl + rightSq - rightSum*rightSum/nr
		if cost < bestCost-eps {
			best, bestCost = i, cost
		}
	}
	if best < 0 {
		return nd
	}
	nd.threshold = (xs[best] + xs[best+1]) / 2
	nd.left = split(xs[:best+1], ys[:best+1])
	nd.right = split(xs[best+1:], ys[best+1:])
	return nd
}
