package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

// BucketizeStatus groups per-status-code series into class buckets (2xx..5xx)
// with per-code breakdowns. It also returns the flattened per-sample stream,
// since the bucketized view has already lost per-sample timestamps and the
// timeline builder still needs them, plus the total request count.
//
// Buckets come back sorted lexicographically by label, which is the natural
// 2xx < 3xx < 4xx < 5xx ordering.
func BucketizeStatus(groups []models.StatusGroup) ([]models.StatusBucket, []models.StatusSample, int) {
	byLabel := make(map[string]*models.StatusBucket)
	var flat []models.StatusSample
	total := 0.0

	for _, g := range groups {
		label := fmt.Sprintf("%dxx", g.StatusCode/100)

		bucket, ok := byLabel[label]
		if !ok {
			bucket = &models.StatusBucket{
				Label:   label,
				PerCode: make(map[int]float64),
			}
			byLabel[label] = bucket
		}

		groupTotal := 0.0
		for _, s := range g.Samples {
			groupTotal += s.Value
			flat = append(flat, models.StatusSample{
				Timestamp:  s.Timestamp,
				StatusCode: g.StatusCode,
				Count:      s.Value,
			})
		}

		bucket.TotalCount += groupTotal
		bucket.PerCode[g.StatusCode] += groupTotal
		total += groupTotal
	}

	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	buckets := make([]models.StatusBucket, 0, len(labels))
	for _, label := range labels {
		buckets = append(buckets, *byLabel[label])
	}

	return buckets, flat, int(math.Round(total))
}
