package rca

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func team(mon time.Time, org, geo string, metrics map[string]float64, labels map[string]string) TeamRecord {
	if labels == nil {
		labels = map[string]string{}
	}

	return TeamRecord{Month: mon, OrgLevel: org, GeoCode: geo, Metrics: metrics, Labels: labels}
}

func TestAggregateTeamKPIs_WeightedMean(t *testing.T) {
	jan := month(2024, 1)
	recs := []TeamRecord{
		team(jan, "L1", "France", map[string]float64{ColHeadcount: 10, ColAvgAge: 50}, nil),
		team(jan, "L2", "Spain", map[string]float64{ColHeadcount: 20, ColAvgAge: 80}, nil),
	}

	agg := AggregateTeamKPIs(recs)
	assert.Len(t, agg, 1)
	assert.Equal(t, AllTeams, agg[0].OrgLevel)
	assert.Equal(t, AllTeams, agg[0].GeoCode)
	assert.InDelta(t, 70.0, agg[0].Metric(ColAvgAge), 1e-9)
	assert.Equal(t, 30.0, agg[0].Headcount())
}

func TestAggregateTeamKPIs_NaNExcluded(t *testing.T) {
	jan := month(2024, 1)
	recs := []TeamRecord{
		team(jan, "L1", "France", map[string]float64{ColHeadcount: 10, ColAvgAge: 40, ColTeamHealth: math.NaN()}, nil),
		team(jan, "L2", "Spain", map[string]float64{ColHeadcount: 30, ColAvgAge: math.NaN(), ColTeamHealth: math.NaN()}, nil),
	}

	agg := AggregateTeamKPIs(recs)
	// the second team has no age, so its headcount doesn't dilute the mean
	assert.InDelta(t, 40.0, agg[0].Metric(ColAvgAge), 1e-9)
	assert.True(t, math.IsNaN(agg[0].Metric(ColTeamHealth)))
	assert.Equal(t, 40.0, agg[0].Headcount())

	// absent columns stay absent
	_, ok := agg[0].Metrics[ColMobility]
	assert.False(t, ok)
}

func TestAggregateTeamKPIs_Attrition(t *testing.T) {
	jan := month(2024, 1)
	recs := []TeamRecord{
		team(jan, "L1", "France", map[string]float64{ColHeadcount: 10, ColExitsRolling12: 1, ColAttritionRate: 10}, nil),
		team(jan, "L2", "Spain", map[string]float64{ColHeadcount: 40, ColExitsRolling12: 14, ColAttritionRate: 35}, nil),
	}

	agg := AggregateTeamKPIs(recs)
	assert.InDelta(t, 100*15.0/50.0, agg[0].Metric(ColAttritionRate), 1e-9)
	// neither the plain nor the weighted mean of the team rates
	assert.NotEqual(t, 22.5, agg[0].Metric(ColAttritionRate))
	assert.NotEqual(t, (10*10.0+40*35.0)/50, agg[0].Metric(ColAttritionRate))

	noHC := []TeamRecord{
		team(jan, "L1", "France", map[string]float64{ColHeadcount: 0, ColExitsRolling12: 1, ColAttritionRate: 10}, nil),
	}
	assert.True(t, math.IsNaN(AggregateTeamKPIs(noHC)[0].Metric(ColAttritionRate)))
}

func TestAggregateTeamKPIs_Idempotent(t *testing.T) {
	recs := []TeamRecord{
		team(month(2024, 2), "L1", "France", map[string]float64{ColHeadcount: 12, ColExitsRolling12: 2, ColAttritionRate: 16, ColAvgTenure: 3.3}, nil),
		team(month(2024, 1), "L1", "France", map[string]float64{ColHeadcount: 10, ColExitsRolling12: 1, ColAttritionRate: 10, ColAvgTenure: 3.1}, nil),
		team(month(2024, 1), "L2", "Spain", map[string]float64{ColHeadcount: 7, ColExitsRolling12: 3, ColAttritionRate: 40, ColAvgTenure: 7.7}, nil),
	}

	once := AggregateTeamKPIs(recs)
	twice := AggregateTeamKPIs(once)
	assert.Len(t, twice, len(once))
	for ind := range once {
		assert.Equal(t, once[ind].Month, twice[ind].Month)
		for k, v := range once[ind].Metrics {
			assert.InDelta(t, v, twice[ind].Metrics[k], 1e-9, k)
		}
	}

	assert.True(t, once[0].Month.Before(once[1].Month))
}

func TestAggregateTeamKPIs_Mode(t *testing.T) {
	jan := month(2024, 1)
	recs := []TeamRecord{
		team(jan, "A", "X", map[string]float64{ColHeadcount: 1}, map[string]string{ColFunction: "Sales", ColCurrency: "USD"}),
		team(jan, "B", "X", map[string]float64{ColHeadcount: 1}, map[string]string{ColFunction: "Medical", ColCurrency: "EUR"}),
		team(jan, "C", "X", map[string]float64{ColHeadcount: 1}, map[string]string{ColFunction: "Sales"}),
	}

	agg := AggregateTeamKPIs(recs)
	assert.Equal(t, "Sales", agg[0].Labels[ColFunction])
	// tie goes to the lexically smallest
	assert.Equal(t, "EUR", agg[0].Labels[ColCurrency])
	assert.Empty(t, agg[0].Labels[ColMgmtLevel])
}

func TestAggregateTeamKPIs_Empty(t *testing.T) {
	assert.Nil(t, AggregateTeamKPIs(nil))
}
