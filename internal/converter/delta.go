package converter

import (
	"sync"
	"time"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

// DeltaConverter turns cumulative counter streams into per-interval deltas.
// The analysis timeline sums request counts per window, which only makes
// sense for delta values; most OTLP sources export cumulative sums.
type DeltaConverter struct {
	mu     sync.Mutex
	states map[uint64]*seriesState
}

type seriesState struct {
	lastValue     float64
	lastTimestamp time.Time
}

func NewDeltaConverter() *DeltaConverter {
	return &DeltaConverter{
		states: make(map[uint64]*seriesState),
	}
}

// ToDelta converts one sample in place, keyed by its series hash. The first
// observation of a series passes through unchanged; a counter reset (value
// going backwards) also passes the raw value through, since the pre-reset
// baseline is gone.
func (c *DeltaConverter) ToDelta(sample models.StoredSample) models.StoredSample {
	if sample.Temporality == models.TemporalityDelta {
		return sample
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := sample
	out.Temporality = models.TemporalityDelta

	state, ok := c.states[sample.SeriesHash]
	if !ok {
		c.states[sample.SeriesHash] = &seriesState{
			lastValue:     sample.Value,
			lastTimestamp: sample.Timestamp,
		}
		return out
	}

	if sample.Value >= state.lastValue {
		out.Value = sample.Value - state.lastValue
	}
	state.lastValue = sample.Value
	state.lastTimestamp = sample.Timestamp

	return out
}

// Reset drops all per-series state.
func (c *DeltaConverter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = make(map[uint64]*seriesState)
}
