package rca

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AggregateTeamKPIs collapses per-team rows into a single "ALL" row per month.
//   - SumColumns are summed
//   - WeightedColumns are headcount-weighted means over the teams that have a value
//   - attrition is recomputed as 100 * exits / headcount
//   - LabelColumns take the monthly mode
//
// Output is sorted by month. Only columns present in the input are aggregated.
func AggregateTeamKPIs(recs []TeamRecord) []TeamRecord {
	if len(recs) == 0 {
		return nil
	}

	present := presentMetrics(recs)
	byMonth := make(map[time.Time][]TeamRecord)
	var months []time.Time
	for _, rec := range recs {
		m := MonthStart(rec.Month)
		if _, ok := byMonth[m]; !ok {
			months = append(months, m)
		}
		byMonth[m] = append(byMonth[m], rec)
	}

	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	out := make([]TeamRecord, 0, len(months))
	for _, month := range months {
		out = append(out, aggregateMonth(month, byMonth[month], present))
	}

	return out
}

func aggregateMonth(month time.Time, grp []TeamRecord, present map[string]bool) TeamRecord {
	row := TeamRecord{
		Month:    month,
		OrgLevel: AllTeams,
		GeoCode:  AllTeams,
		Metrics:  make(map[string]float64),
		Labels:   make(map[string]string),
	}

	totalHC := nanSum(column(grp, ColHeadcount))
	for _, c := range SumColumns {
		if present[c] {
			row.Metrics[c] = nanSum(column(grp, c))
		}
	}

	for _, c := range WeightedColumns {
		if present[c] {
			row.Metrics[c] = weightedMean(grp, c)
		}
	}

	if present[ColExitsRolling12] && present[ColAttritionRate] {
		row.Metrics[ColAttritionRate] = math.NaN()
		if exits := row.Metrics[ColExitsRolling12]; totalHC > 0 && !math.IsNaN(exits) {
			row.Metrics[ColAttritionRate] = exits * 100 / totalHC
		}
	}

	for _, c := range LabelColumns {
		if m := mode(grp, c); m != "" {
			row.Labels[c] = m
		}
	}

	return row
}

// weightedMean is sum(v*hc)/sum(hc) restricted to teams with a non-NaN value and headcount.
// NaN if no team qualifies or the headcount total is zero.
func weightedMean(grp []TeamRecord, col string) float64 {
	var x, w []float64
	for _, rec := range grp {
		v, hc := rec.Metric(col), rec.Headcount()
		if math.IsNaN(v) || math.IsNaN(hc) {
			continue
		}

		x = append(x, v)
		w = append(w, hc)
	}

	if len(x) == 0 || floats.Sum(w) == 0 {
		return math.NaN()
	}

	return stat.Mean(x, w)
}

func column(grp []TeamRecord, col string) []float64 {
	x := make([]float64, len(grp))
	for ind, rec := range grp {
		x[ind] = rec.Metric(col)
	}

	return x
}

// nanSum sums the non-NaN entries, NaN if there are none.
func nanSum(x []float64) float64 {
	var (
		s float64
		n int
	)
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		s += v
		n++
	}

	if n == 0 {
		return math.NaN()
	}

	return s
}

// mode is the most frequent non-empty label; ties go to the lexically smallest.
func mode(grp []TeamRecord, col string) string {
	counts := make(map[string]int)
	for _, rec := range grp {
		if v := rec.Labels[col]; v != "" {
			counts[v]++
		}
	}

	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}

	return best
}

func presentMetrics(recs []TeamRecord) map[string]bool {
	present := make(map[string]bool)
	for _, rec := range recs {
		for k := range rec.Metrics {
			present[k] = true
		}
	}

	return present
}
