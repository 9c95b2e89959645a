package rca

import (
	"math"
	"sort"
)

// Result is one significant (effect KPI, cause KPI) pair of an RCA run.
type Result struct {
	EffectKPI string
	CauseKPI  string

	MinPValue        float64
	TransferEntropy  float64
	ExplainedEntropy float64 // in [0,1], NaN if undefined

	Lag int // months
}

// Signal is the strength tier of a result.
type Signal string

const (
	SignalWeak     Signal = "*"
	SignalModerate Signal = "**"
	SignalStrong   Signal = "***"
)

// Classify maps explained entropy to a tier: > 0.3 strong, > 0.1 moderate, anything else
// (NaN included) weak.
func Classify(ee float64) Signal {
	switch {
	case ee > 0.3:
		return SignalStrong
	case ee > 0.1:
		return SignalModerate
	default:
		return SignalWeak
	}
}

func (r Result) Signal() Signal {
	return Classify(r.ExplainedEntropy)
}

type Results []Result

// Sort orders by effect KPI, then ascending p-value, then descending explained entropy
// (NaN last), then cause KPI.
func (rs Results) Sort() {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.EffectKPI != b.EffectKPI {
			return a.EffectKPI < b.EffectKPI
		}

		if less, ok := lessNaNLast(a.MinPValue, b.MinPValue); ok {
			return less
		}

		if less, ok := lessNaNLast(-a.ExplainedEntropy, -b.ExplainedEntropy); ok {
			return less
		}

		return a.CauseKPI < b.CauseKPI
	})
}

// lessNaNLast compares x and y with NaN sorting after every number. ok is false on a tie.
func lessNaNLast(x, y float64) (less, ok bool) {
	xn, yn := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xn && yn:
		return false, false
	case xn:
		return false, true
	case yn:
		return true, true
	case x == y:
		return false, false
	}

	return x < y, true
}

// Counts tallies the results by tier.
func (rs Results) Counts() (weak, moderate, strong int) {
	for _, r := range rs {
		switch r.Signal() {
		case SignalStrong:
			strong++
		case SignalModerate:
			moderate++
		default:
			weak++
		}
	}

	return weak, moderate, strong
}

// ByEffect groups the results by effect KPI, keeping their order.
func (rs Results) ByEffect() (codes []string, groups map[string]Results) {
	groups = make(map[string]Results)
	for _, r := range rs {
		if _, ok := groups[r.EffectKPI]; !ok {
			codes = append(codes, r.EffectKPI)
		}
		groups[r.EffectKPI] = append(groups[r.EffectKPI], r)
	}

	return codes, groups
}

// WriteCSV writes the results, one line per pair, to fileName.
func (rs Results) WriteCSV(fileName string) (err error) {
	f := NewFiles("effect_kpi", "cause_kpi", "min_p_value", "transfer_entropy", "explained_entropy", "lag", "signal")
	if e := f.Create(fileName); e != nil {
		return e
	}
	defer func() {
		if e := f.Close(); err == nil {
			err = e
		}
	}()

	if e := f.WriteHeader(); e != nil {
		return e
	}

	for _, r := range rs {
		if e := f.WriteLine([]any{r.EffectKPI, r.CauseKPI, r.MinPValue, r.TransferEntropy, r.ExplainedEntropy, r.Lag, string(r.Signal())}); e != nil {
			return e
		}
	}

	return nil
}
