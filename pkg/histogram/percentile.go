// Package histogram estimates latency percentiles from explicit-bucket
// histogram data points, for sources that export distributions instead of
// pre-computed quantiles.
package histogram

import (
	"fmt"
	"math"
	"sort"
)

// Bucket is one explicit histogram bucket: the count of observations at or
// below UpperBound, delta style (not cumulative).
type Bucket struct {
	UpperBound float64
	Count      uint64
}

// Estimate returns the given percentile (0..100) by linear interpolation
// within the bucket that crosses the target rank. The +Inf bucket cannot be
// interpolated into, so a target landing there returns the previous bound.
func Estimate(buckets []Bucket, percentile float64) (float64, error) {
	if percentile < 0 || percentile > 100 {
		return 0, fmt.Errorf("percentile must be between 0 and 100, got %f", percentile)
	}
	if len(buckets) == 0 {
		return 0, fmt.Errorf("no buckets provided")
	}

	sorted := append([]Bucket(nil), buckets...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UpperBound < sorted[j].UpperBound
	})

	var totalCount uint64
	for _, b := range sorted {
		totalCount += b.Count
	}
	if totalCount == 0 {
		return 0, fmt.Errorf("total count is zero")
	}

	targetCount := float64(totalCount) * (percentile / 100.0)
	var cumulativeCount uint64
	previousBound := 0.0

	for _, b := range sorted {
		cumulativeCount += b.Count

		if float64(cumulativeCount) >= targetCount {
			if b.Count == 0 {
				return b.UpperBound, nil
			}
			if math.IsInf(b.UpperBound, 1) {
				return previousBound, nil
			}
			fraction := (targetCount - float64(cumulativeCount-b.Count)) / float64(b.Count)
			return previousBound + fraction*(b.UpperBound-previousBound), nil
		}
		previousBound = b.UpperBound
	}

	last := sorted[len(sorted)-1].UpperBound
	if !math.IsInf(last, 1) {
		return last, nil
	}
	return previousBound, nil
}

// Quantiles computes the four tracked latency percentiles in one pass over
// the same bucket set.
func Quantiles(buckets []Bucket) (p50, p90, p95, p99 float64, err error) {
	for _, q := range []struct {
		percentile float64
		dst        *float64
	}{
		{50, &p50},
		{90, &p90},
		{95, &p95},
		{99, &p99},
	} {
		v, e := Estimate(buckets, q.percentile)
		if e != nil {
			return 0, 0, 0, 0, fmt.Errorf("failed to estimate p%.0f: %w", q.percentile, e)
		}
		*q.dst = v
	}
	return p50, p90, p95, p99, nil
}

// Merge sums bucket groups sharing upper bounds, for exports that split one
// distribution across several data points.
func Merge(groups [][]Bucket) []Bucket {
	mergedMap := make(map[float64]uint64)
	for _, buckets := range groups {
		for _, b := range buckets {
			mergedMap[b.UpperBound] += b.Count
		}
	}

	merged := make([]Bucket, 0, len(mergedMap))
	for upperBound, count := range mergedMap {
		merged = append(merged, Bucket{UpperBound: upperBound, Count: count})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].UpperBound < merged[j].UpperBound
	})
	return merged
}
