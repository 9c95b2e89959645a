package rca

import (
	"sort"
)

// DefaultMinTeamHeadcount is the latest-month headcount a team needs to be shown on its own.
const DefaultMinTeamHeadcount = 5

// ApplyTeamSizeFilter returns the aggregate rows followed by the full history of every team
// whose headcount in the latest month is at least minHeadcount. Smaller teams only count
// toward the aggregate. Teams are ordered by TeamLabel, then month.
func ApplyTeamSizeFilter(recs []TeamRecord, minHeadcount int) []TeamRecord {
	if len(recs) == 0 {
		return nil
	}

	out := AggregateTeamKPIs(recs)

	latest := MonthStart(recs[0].Month)
	for _, rec := range recs[1:] {
		if m := MonthStart(rec.Month); m.After(latest) {
			latest = m
		}
	}

	qualifying := make(map[teamKey]bool)
	for _, rec := range recs {
		if MonthStart(rec.Month).Equal(latest) && rec.Headcount() >= float64(minHeadcount) {
			qualifying[rec.key()] = true
		}
	}

	var teams []TeamRecord
	for _, rec := range recs {
		if qualifying[rec.key()] {
			teams = append(teams, rec)
		}
	}

	sort.SliceStable(teams, func(i, j int) bool {
		li, lj := teams[i].TeamLabel(), teams[j].TeamLabel()
		if li != lj {
			return li < lj
		}

		return teams[i].Month.Before(teams[j].Month)
	})

	return append(out, teams...)
}

// VisibleTeams lists the labels of the individually shown teams, "ALL" excluded.
func VisibleTeams(filtered []TeamRecord) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, rec := range filtered {
		l := rec.TeamLabel()
		if l == AllTeams || seen[l] {
			continue
		}

		seen[l] = true
		labels = append(labels, l)
	}

	return labels
}
