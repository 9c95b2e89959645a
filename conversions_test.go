package rca

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type decimal string

func (d decimal) String() string { return string(d) }

func TestToFloat(t *testing.T) {
	f32 := float32(1.5)
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{3.25, 3.25, true},
		{int64(4), 4, true},
		{uint8(2), 2, true},
		{&f32, 1.5, true},
		{"2.5", 2.5, true},
		{[]byte("7"), 7, true},
		{decimal("12.125"), 12.125, true},
		{"abc", math.NaN(), false},
	}

	for _, tt := range tests {
		got, ok := toFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%v", tt.in)
		}
	}

	for _, null := range []any{nil, "", "NULL", (*float64)(nil)} {
		got, ok := toFloat(null)
		assert.True(t, ok)
		assert.True(t, math.IsNaN(got))
	}
}

func TestToDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{"2024-03-05", "20240305", []byte("2024-03-05 13:45:00"), time.Date(2024, 3, 5, 17, 1, 0, 0, time.UTC)} {
		got, ok := toDate(in)
		assert.True(t, ok, "%v", in)
		assert.Equal(t, want, got)
	}

	_, ok := toDate("yesterday")
	assert.False(t, ok)
}

func TestToStringBoolInt(t *testing.T) {
	s := "x"
	assert.Equal(t, "x", toString(&s))
	assert.Equal(t, "", toString(nil))
	assert.Equal(t, "42", toString(int32(42)))

	assert.True(t, toBool(true))
	assert.True(t, toBool(uint8(1)))
	assert.True(t, toBool("t"))
	assert.False(t, toBool(nil))

	n, ok := toInt("17")
	assert.True(t, ok)
	assert.Equal(t, 17, n)
	_, ok = toInt(nil)
	assert.False(t, ok)
}
