package rca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	effect := Table{
		{ID: "y", Link: LinkAll, Date: month(2024, 3), Value: 3},
		{ID: "y", Link: LinkAll, Date: month(2024, 1), Value: 1},
		{ID: "y", Link: LinkAll, Date: month(2024, 2), Value: 2},
	}
	cause := Table{
		{ID: "x", Link: LinkAll, Date: month(2024, 1), Value: 10},
		{ID: "x", Link: LinkAll, Date: month(2024, 3), Value: 30},
		{ID: "x", Link: LinkAll, Date: month(2024, 4), Value: 40},
		{ID: "x", Link: "other", Date: month(2024, 2), Value: 20},
	}

	dates, y, x := Join(effect, cause)
	assert.Equal(t, []float64{1, 3}, y)
	assert.Equal(t, []float64{10, 30}, x)
	assert.Equal(t, month(2024, 1), dates[0])
	assert.Equal(t, 3, effect.Months())
}
