package causal

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// minEntropySamples is the fewest (future, past, cause) triples an estimate is built from.
const minEntropySamples = 4

// surrogateSeed fixes the shuffles so a pair always gets the same verdict.
const surrogateSeed = 20240601

type entropyResult struct {
	te          float64 // bias-corrected: raw TE less the mean shuffled TE, floored at 0
	ee          float64 // te / H(Y_t | Y_t-1), NaN if the conditional entropy is zero
	lag         int
	significant bool // te beat the (1-alpha) quantile of the shuffled maxima
}

// teEstimator holds the binned series.
type teEstimator struct {
	y, x []int
	bins int
}

// transferEntropy estimates TE(x -> y) on quantile-binned series for lags 1..maxLag.
//
// Plug-in entropies are biased upward on short series, so every lag is corrected by the mean
// TE of the same lag over shuffles of x (fixed seed). The lag with the largest corrected
// explained entropy is reported. It is significant when its corrected TE exceeds the
// (1-alpha) quantile of the per-shuffle maxima of corrected TE over all lags.
func transferEntropy(y, x []float64, maxLag, bins, surrogates int, alpha float64) (entropyResult, error) {
	if len(y) != len(x) {
		return entropyResult{}, ErrTooShort
	}

	est := teEstimator{y: discretize(y, bins), x: discretize(x, bins), bins: bins}

	var raw, cond []float64
	for k := 1; k <= maxLag; k++ {
		te, c, ok := est.lag(est.x, k)
		if !ok {
			break
		}
		raw, cond = append(raw, te), append(cond, c)
	}

	lags := len(raw)
	if lags == 0 {
		return entropyResult{te: math.NaN(), ee: math.NaN()}, ErrTooShort
	}

	// null[j][k] is the raw TE at lag k+1 of the j-th shuffle
	rng := rand.New(rand.NewPCG(surrogateSeed, uint64(len(x))))
	shuffled := make([]int, len(est.x))
	null := make([][]float64, surrogates)
	for j := range null {
		copy(shuffled, est.x)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		null[j] = make([]float64, lags)
		for k := range lags {
			null[j][k], _, _ = est.lag(shuffled, k+1)
		}
	}

	bias := make([]float64, lags)
	for j := range null {
		floats.Add(bias, null[j])
	}
	floats.Scale(1/float64(surrogates), bias)

	best := entropyResult{te: math.NaN(), ee: math.NaN()}
	for k := range lags {
		te := math.Max(raw[k]-bias[k], 0)

		ee := math.NaN()
		if cond[k] > 1e-12 {
			ee = math.Min(te/cond[k], 1)
		}

		switch {
		case best.lag == 0:
			best = entropyResult{te: te, ee: ee, lag: k + 1}
		case !math.IsNaN(ee) && (math.IsNaN(best.ee) || ee > best.ee):
			best = entropyResult{te: te, ee: ee, lag: k + 1}
		}
	}

	maxima := make([]float64, surrogates)
	for j := range null {
		for k := range lags {
			maxima[j] = math.Max(maxima[j], null[j][k]-bias[k])
		}
	}
	sort.Float64s(maxima)
	cut := stat.Quantile(1-alpha, stat.Empirical, maxima, nil)
	best.significant = best.te > cut

	return best, nil
}

// lag computes TE = H(Yf,Yp) + H(Yp,Xk) - H(Yp) - H(Yf,Yp,Xk) with Yf = y_t, Yp = y_t-1,
// Xk = x_t-k, along with the conditional entropy H(Yf|Yp).
func (est teEstimator) lag(x []int, k int) (te, cond float64, ok bool) {
	n, b := len(est.y), est.bins
	if n-k < minEntropySamples {
		return 0, 0, false
	}

	fp := make([]float64, b*b)
	px := make([]float64, b*b)
	p := make([]float64, b)
	fpx := make([]float64, b*b*b)
	for t := k; t < n; t++ {
		yf, yp, xk := est.y[t], est.y[t-1], x[t-k]
		fp[yf*b+yp]++
		px[yp*b+xk]++
		p[yp]++
		fpx[(yf*b+yp)*b+xk]++
	}

	total := float64(n - k)
	hFP, hPX, hP, hFPX := entropy(fp, total), entropy(px, total), entropy(p, total), entropy(fpx, total)

	return math.Max(hFP+hPX-hP-hFPX, 0), hFP - hP, true
}

// entropy turns counts into probabilities in place and returns their entropy in nats.
func entropy(counts []float64, total float64) float64 {
	floats.Scale(1/total, counts)

	return stat.Entropy(counts)
}

// discretize assigns each value to one of bins equal-frequency bins.
func discretize(x []float64, bins int) []int {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins-1)
	for k := 1; k < bins; k++ {
		edges = append(edges, stat.Quantile(float64(k)/float64(bins), stat.Empirical, sorted, nil))
	}

	out := make([]int, len(x))
	for ind, v := range x {
		b := 0
		for _, e := range edges {
			if v > e {
				b++
			}
		}
		out[ind] = b
	}

	return out
}
