package rca

import (
	"math"
	"sort"
	"time"
)

// TeamSummary describes a manager's per-team dataset.
type TeamSummary struct {
	Teams          int
	Geos           []string
	Functions      []string
	TotalHeadcount float64 // latest month
	TotalFTE       float64 // latest month
	FirstMonth     time.Time
	LatestMonth    time.Time
}

// SummarizeTeams counts teams and geos over all months and takes headcount and FTE from the
// latest month. Returns nil on no data.
func SummarizeTeams(recs []TeamRecord) *TeamSummary {
	if len(recs) == 0 {
		return nil
	}

	s := &TeamSummary{FirstMonth: MonthStart(recs[0].Month), LatestMonth: MonthStart(recs[0].Month)}
	for _, rec := range recs {
		m := MonthStart(rec.Month)
		if m.Before(s.FirstMonth) {
			s.FirstMonth = m
		}
		if m.After(s.LatestMonth) {
			s.LatestMonth = m
		}
	}

	teams := make(map[teamKey]bool)
	geos := make(map[string]bool)
	functions := make(map[string]bool)
	var hc, fte []float64
	for _, rec := range recs {
		teams[rec.key()] = true
		if rec.GeoCode != "" {
			geos[rec.GeoCode] = true
		}
		if f := rec.Labels[ColFunction]; f != "" {
			functions[f] = true
		}

		if MonthStart(rec.Month).Equal(s.LatestMonth) {
			hc = append(hc, rec.Headcount())
			fte = append(fte, rec.Metric(ColTotalFTE))
		}
	}

	s.Teams = len(teams)
	s.Geos = sortedKeys(geos)
	s.Functions = sortedKeys(functions)
	s.TotalHeadcount = zeroNaN(nanSum(hc))
	s.TotalFTE = zeroNaN(nanSum(fte))

	return s
}

// DomainSummary describes the domain KPIs loaded for a manager.
type DomainSummary struct {
	BusinessUnit       string
	DomainKPIs         []string
	Clusters           []string
	CountryKPIs        []string
	Countries          []string
	AggregateKPIs      []string
	DomainRows         int
	CountryRows        int
	AggregateRows      int
	EffectFromClusters bool // no bu_aggregate rows, effects fall back to per-cluster rows
}

// SummarizeDomain returns nil on no data.
func SummarizeDomain(recs []DomainRecord) *DomainSummary {
	if len(recs) == 0 {
		return nil
	}

	s := &DomainSummary{}
	kpis := make(map[Source]map[string]bool)
	clusters, countries := make(map[string]bool), make(map[string]bool)
	for _, rec := range recs {
		if kpis[rec.Source] == nil {
			kpis[rec.Source] = make(map[string]bool)
		}
		kpis[rec.Source][rec.KPICode] = true
		switch rec.Source {
		case SourceDomain:
			s.DomainRows++
			if rec.Cluster != "" {
				clusters[rec.Cluster] = true
			}
			if s.BusinessUnit == "" {
				s.BusinessUnit = rec.BusinessUnit
			}
		case SourceCountryOrg:
			s.CountryRows++
			if rec.Cluster != "" {
				countries[rec.Cluster] = true
			}
		case SourceBUAggregate:
			s.AggregateRows++
		}
	}

	if s.BusinessUnit == "" {
		for _, rec := range recs {
			if rec.Source == SourceBUAggregate {
				s.BusinessUnit = rec.BusinessUnit
				break
			}
		}
	}

	s.DomainKPIs = sortedKeys(kpis[SourceDomain])
	s.CountryKPIs = sortedKeys(kpis[SourceCountryOrg])
	s.AggregateKPIs = sortedKeys(kpis[SourceBUAggregate])
	s.Clusters = sortedKeys(clusters)
	s.Countries = sortedKeys(countries)
	s.EffectFromClusters = s.AggregateRows == 0

	return s
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func zeroNaN(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}

	return x
}
