package rca

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func filterData() []TeamRecord {
	var recs []TeamRecord
	sizes := map[string][]float64{"Big": {20, 22}, "Mid": {6, 5}, "Small": {9, 2}}
	for org, hc := range sizes {
		for ind, h := range hc {
			recs = append(recs, team(month(2024, time.Month(1+ind)), org, "FR", map[string]float64{ColHeadcount: h}, nil))
		}
	}

	return recs
}

func TestApplyTeamSizeFilter(t *testing.T) {
	out := ApplyTeamSizeFilter(filterData(), DefaultMinTeamHeadcount)

	// aggregate rows first
	assert.Equal(t, AllTeams, out[0].TeamLabel())
	assert.Equal(t, AllTeams, out[1].TeamLabel())
	assert.Equal(t, 35.0, out[0].Headcount())

	// Small shrank below 5 in the latest month, so only its aggregate contribution remains
	assert.Equal(t, []string{"Big · FR", "Mid · FR"}, VisibleTeams(out))
	assert.Len(t, out, 2+4)
	assert.True(t, out[2].Month.Before(out[3].Month))
}

func TestApplyTeamSizeFilter_Monotone(t *testing.T) {
	recs := filterData()
	prev := len(VisibleTeams(ApplyTeamSizeFilter(recs, 0)))
	for threshold := 1; threshold <= 30; threshold++ {
		out := ApplyTeamSizeFilter(recs, threshold)
		n := len(VisibleTeams(out))
		assert.LessOrEqual(t, n, prev)
		assert.Equal(t, AllTeams, out[0].TeamLabel())
		prev = n
	}

	assert.Equal(t, 0, prev)
}

func TestApplyTeamSizeFilter_Empty(t *testing.T) {
	assert.Empty(t, ApplyTeamSizeFilter(nil, 5))
}
