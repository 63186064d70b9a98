package histogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	buckets := []Bucket{
		{UpperBound: 100, Count: 50},
		{UpperBound: 200, Count: 30},
		{UpperBound: 500, Count: 15},
		{UpperBound: math.Inf(1), Count: 5},
	}

	tests := []struct {
		name       string
		percentile float64
		want       float64
	}{
		{"p50 at first bucket boundary", 50, 100},
		{"p80 at second bucket boundary", 80, 200},
		{"p90 interpolated", 90, 400},
		{"p99 lands in inf bucket", 99, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Estimate(buckets, tt.percentile)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEstimateUnsortedInput(t *testing.T) {
	buckets := []Bucket{
		{UpperBound: 500, Count: 15},
		{UpperBound: 100, Count: 50},
		{UpperBound: math.Inf(1), Count: 5},
		{UpperBound: 200, Count: 30},
	}

	got, err := Estimate(buckets, 90)
	require.NoError(t, err)
	assert.InDelta(t, 400, got, 1e-9)
}

func TestEstimateErrors(t *testing.T) {
	tests := []struct {
		name       string
		buckets    []Bucket
		percentile float64
	}{
		{"negative percentile", []Bucket{{UpperBound: 100, Count: 1}}, -1},
		{"percentile above 100", []Bucket{{UpperBound: 100, Count: 1}}, 101},
		{"no buckets", nil, 50},
		{"all counts zero", []Bucket{{UpperBound: 100, Count: 0}}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Estimate(tt.buckets, tt.percentile)
			assert.Error(t, err)
		})
	}
}

func TestQuantiles(t *testing.T) {
	buckets := []Bucket{
		{UpperBound: 50, Count: 500},
		{UpperBound: 100, Count: 400},
		{UpperBound: 250, Count: 80},
		{UpperBound: 1000, Count: 20},
	}

	p50, p90, p95, p99, err := Quantiles(buckets)
	require.NoError(t, err)

	assert.InDelta(t, 50, p50, 1e-9)
	assert.InDelta(t, 100, p90, 1e-9)
	assert.InDelta(t, 193.75, p95, 1e-9)
	assert.InDelta(t, 625, p99, 1e-9)
	assert.LessOrEqual(t, p50, p90)
	assert.LessOrEqual(t, p90, p95)
	assert.LessOrEqual(t, p95, p99)
}

func TestMerge(t *testing.T) {
	groups := [][]Bucket{
		{{UpperBound: 100, Count: 10}, {UpperBound: 200, Count: 5}},
		{{UpperBound: 100, Count: 3}, {UpperBound: 500, Count: 2}},
	}

	merged := Merge(groups)

	assert.Equal(t, []Bucket{
		{UpperBound: 100, Count: 13},
		{UpperBound: 200, Count: 5},
		{UpperBound: 500, Count: 2},
	}, merged)
}
