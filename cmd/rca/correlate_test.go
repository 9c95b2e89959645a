package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/invertedv/rca"
	"github.com/stretchr/testify/assert"
)

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	renderResults(&buf, nil)
	assert.Equal(t, "no significant correlations found\n", buf.String())

	buf.Reset()
	renderResults(&buf, rca.Results{
		{EffectKPI: "NET_SALES", CauseKPI: "avg_age", MinPValue: 0.01, TransferEntropy: 0.2, ExplainedEntropy: 0.35, Lag: 2},
		{EffectKPI: "OTIF", CauseKPI: "headcount", MinPValue: 0.02, TransferEntropy: math.NaN(), ExplainedEntropy: math.NaN(), Lag: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "2 significant pairs: * 1  ** 0  *** 1")
	assert.Contains(t, out, "NET_SALES")
	assert.Contains(t, out, "avg_age")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "no significant")
}
