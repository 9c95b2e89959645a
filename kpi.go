package rca

import (
	"math"
	"time"
)

// Column names of the team KPI source. These double as the names of the cause series in an RCA run.
const (
	ColMonth    = "month"
	ColOrgLevel = "organization_level_code"
	ColGeoCode  = "geo_code"

	ColHeadcount      = "headcount"
	ColTotalFTE       = "total_fte"
	ColExitsRolling12 = "exits_rolling_12m"

	ColAttritionRate        = "attrition_rate_pct"
	ColAvgAge               = "avg_age"
	ColNearRetirement       = "pct_near_retirement"
	ColAvgTenure            = "avg_tenure_years"
	ColAvgTimeInPosition    = "avg_time_in_position_years"
	ColMedianSalary         = "median_salary"
	ColFemale               = "pct_female"
	ColTeamHealth           = "team_health_score"
	ColDevelopment          = "development_score"
	ColMobility             = "mobility_score"
	ColSuccession           = "succession_score"
	ColReadyForPromotion    = "pct_ready_for_promotion"
	ColSuccessionCandidates = "pct_succession_candidates"
	ColHighRetentionRisk    = "pct_high_retention_risk"
	ColCriticalFlightRisk   = "pct_critical_flight_risk"
	ColManagers             = "pct_managers"
	ColSpanOfControl        = "avg_span_of_control"
	ColLongInPosition       = "pct_long_in_position"

	ColExecComm     = "pct_exec_comm"
	ColExecLevel1   = "pct_exec_level_1"
	ColExecLevel2   = "pct_exec_level_2"
	ColMgmtLevel1   = "pct_level_1"
	ColMgmtLevel2   = "pct_level_2"
	ColMgmtLevel3   = "pct_level_3"
	ColMgmtLevel4   = "pct_level_4"
	ColMgmtLevel5   = "pct_level_5"
	ColMgmtLocal    = "pct_local"
	ColFunction     = "primary_function"
	ColMgmtLevel    = "primary_mgmt_level"
	ColCurrency     = "currency"
	AllTeams        = "ALL"
	teamLabelJoiner = " · "
)

// SumColumns are absolute quantities: summed across teams.
var SumColumns = []string{ColHeadcount, ColTotalFTE, ColExitsRolling12}

// WeightedColumns are rates and scores: headcount-weighted across teams.
var WeightedColumns = []string{
	ColAttritionRate, ColAvgAge, ColNearRetirement, ColAvgTenure, ColAvgTimeInPosition,
	ColMedianSalary, ColFemale, ColTeamHealth, ColDevelopment, ColMobility, ColSuccession,
	ColReadyForPromotion, ColSuccessionCandidates, ColHighRetentionRisk, ColCriticalFlightRisk,
	ColManagers, ColSpanOfControl, ColLongInPosition,
	ColExecComm, ColExecLevel1, ColExecLevel2, ColMgmtLevel1, ColMgmtLevel2, ColMgmtLevel3,
	ColMgmtLevel4, ColMgmtLevel5, ColMgmtLocal,
}

// LabelColumns are categorical: the monthly mode is kept.
var LabelColumns = []string{ColFunction, ColMgmtLevel, ColCurrency}

// CorrelatableKPIs is the allow-list of aggregated PPL KPIs tested as causes.
var CorrelatableKPIs = []string{
	ColHeadcount, ColAttritionRate, ColAvgAge, ColNearRetirement, ColAvgTenure,
	ColAvgTimeInPosition, ColFemale, ColTeamHealth, ColDevelopment, ColMobility,
	ColSuccession, ColReadyForPromotion, ColSuccessionCandidates, ColHighRetentionRisk,
	ColCriticalFlightRisk, ColManagers, ColSpanOfControl, ColLongInPosition,
}

// TeamRecord is one (month, team, geography) row of the team KPI source.
// Missing numeric values are NaN.
type TeamRecord struct {
	Month    time.Time
	OrgLevel string
	GeoCode  string

	Metrics map[string]float64
	Labels  map[string]string
}

// Metric returns the named metric, NaN if absent.
func (t TeamRecord) Metric(name string) float64 {
	if v, ok := t.Metrics[name]; ok {
		return v
	}

	return math.NaN()
}

func (t TeamRecord) Headcount() float64 {
	return t.Metric(ColHeadcount)
}

// TeamLabel is "ALL" for aggregate rows, "<org level> · <geo>" otherwise.
func (t TeamRecord) TeamLabel() string {
	if t.OrgLevel == AllTeams && t.GeoCode == AllTeams {
		return AllTeams
	}

	return t.OrgLevel + teamLabelJoiner + t.GeoCode
}

type teamKey struct {
	org, geo string
}

func (t TeamRecord) key() teamKey {
	return teamKey{org: t.OrgLevel, geo: t.GeoCode}
}

// Source tags where a domain KPI row comes from.
type Source string

const (
	SourceDomain      Source = "domain"
	SourceBUAggregate Source = "bu_aggregate"
	SourceCountryOrg  Source = "country_org"
)

// Known reports whether s is one of the tags the domain KPI source produces.
func (s Source) Known() bool {
	switch s {
	case SourceDomain, SourceBUAggregate, SourceCountryOrg:
		return true
	}

	return false
}

// DomainRecord is one row of the domain (MNS) KPI source. Cluster is empty for BU aggregates.
type DomainRecord struct {
	KPICode      string
	BusinessUnit string
	Cluster      string
	Date         time.Time
	Value        float64
	Target       float64
	Source       Source
}

// MonthStart truncates t to the first of its month, midnight UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
