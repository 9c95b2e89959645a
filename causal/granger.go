package causal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTooShort   = errors.New("too few observations")
	ErrDegenerate = errors.New("degenerate series")
)

// rssTol is the residual sum of squares below which a fit is treated as exact.
const rssTol = 1e-12

type grangerResult struct {
	pValue float64
	fStat  float64
	lag    int
}

// granger runs the SSR F-test of "x Granger-causes y" for lags 1..maxLag and keeps the lag
// with the smallest p-value. Lags the data can't support are skipped; if no lag can be
// fit the pair fails.
func granger(y, x []float64, maxLag int) (grangerResult, error) {
	if len(y) != len(x) {
		return grangerResult{}, fmt.Errorf("length mismatch: %d vs %d", len(y), len(x))
	}

	best := grangerResult{pValue: math.NaN()}
	lastErr := ErrTooShort
	for p := 1; p <= maxLag; p++ {
		pv, f, e := grangerLag(y, x, p)
		if e != nil {
			lastErr = e
			if errors.Is(e, ErrTooShort) {
				break
			}

			continue
		}

		if math.IsNaN(best.pValue) || pv < best.pValue {
			best = grangerResult{pValue: pv, fStat: f, lag: p}
		}
	}

	if math.IsNaN(best.pValue) {
		return best, lastErr
	}

	return best, nil
}

// grangerLag compares y_t ~ 1 + y_{t-1..t-p} against y_t ~ 1 + y_{t-1..t-p} + x_{t-1..t-p}.
func grangerLag(y, x []float64, p int) (pValue, fStat float64, err error) {
	n := len(y)
	m := n - p
	dfDen := m - 2*p - 1
	if dfDen < 1 {
		return 0, 0, ErrTooShort
	}

	restricted := mat.NewDense(m, p+1, nil)
	full := mat.NewDense(m, 2*p+1, nil)
	target := mat.NewVecDense(m, nil)
	for row := 0; row < m; row++ {
		t := row + p
		target.SetVec(row, y[t])
		restricted.Set(row, 0, 1)
		full.Set(row, 0, 1)
		for l := 1; l <= p; l++ {
			restricted.Set(row, l, y[t-l])
			full.Set(row, l, y[t-l])
			full.Set(row, p+l, x[t-l])
		}
	}

	var rssR, rssU float64
	if rssR, err = ssr(restricted, target); err != nil {
		return 0, 0, err
	}

	if rssU, err = ssr(full, target); err != nil {
		return 0, 0, err
	}

	if rssR <= rssTol {
		return 0, 0, fmt.Errorf("%w: effect fully explained by its own history", ErrDegenerate)
	}

	if rssU <= rssTol*rssR {
		return 0, math.Inf(1), nil
	}

	fStat = ((rssR - rssU) / float64(p)) / (rssU / float64(dfDen))
	if fStat < 0 {
		fStat = 0
	}

	dist := distuv.F{D1: float64(p), D2: float64(dfDen)}

	return 1 - dist.CDF(fStat), fStat, nil
}

// ssr fits b ~ a by least squares (QR) and returns the residual sum of squares.
func ssr(a *mat.Dense, b *mat.VecDense) (float64, error) {
	var qr mat.QR
	qr.Factorize(a)

	var beta mat.VecDense
	if e := qr.SolveVecTo(&beta, false, b); e != nil {
		return 0, fmt.Errorf("%w: %v", ErrDegenerate, e)
	}

	var resid mat.VecDense
	resid.MulVec(a, &beta)
	resid.SubVec(b, &resid)

	return mat.Dot(&resid, &resid), nil
}
