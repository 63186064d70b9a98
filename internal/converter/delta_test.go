package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

func statusSample(hash uint64, ts time.Time, value float64) models.StoredSample {
	return models.StoredSample{
		Stream:      models.StreamStatus,
		ServiceName: "checkout",
		SeriesHash:  hash,
		Timestamp:   ts,
		Value:       value,
		StatusCode:  200,
		Temporality: models.TemporalityCumulative,
	}
}

func TestToDeltaCumulativeSeries(t *testing.T) {
	c := NewDeltaConverter()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"first observation passes through", 100, 100},
		{"increment", 150, 50},
		{"no change", 150, 0},
		{"large increment", 400, 250},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.ToDelta(statusSample(1, base.Add(time.Duration(i)*time.Minute), tt.value))
			assert.Equal(t, tt.want, out.Value)
			assert.Equal(t, models.TemporalityDelta, out.Temporality)
		})
	}
}

func TestToDeltaCounterReset(t *testing.T) {
	c := NewDeltaConverter()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.ToDelta(statusSample(1, base, 500))

	// The process restarted; the counter went backwards. The raw value is
	// the best available estimate of activity since the reset.
	out := c.ToDelta(statusSample(1, base.Add(time.Minute), 30))
	assert.Equal(t, 30.0, out.Value)

	out = c.ToDelta(statusSample(1, base.Add(2*time.Minute), 80))
	assert.Equal(t, 50.0, out.Value)
}

func TestToDeltaSeriesAreIndependent(t *testing.T) {
	c := NewDeltaConverter()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.ToDelta(statusSample(1, base, 100))
	c.ToDelta(statusSample(2, base, 1000))

	out1 := c.ToDelta(statusSample(1, base.Add(time.Minute), 110))
	out2 := c.ToDelta(statusSample(2, base.Add(time.Minute), 1025))

	assert.Equal(t, 10.0, out1.Value)
	assert.Equal(t, 25.0, out2.Value)
}

func TestToDeltaPassesDeltaThrough(t *testing.T) {
	c := NewDeltaConverter()

	in := statusSample(1, time.Now(), 42)
	in.Temporality = models.TemporalityDelta

	out := c.ToDelta(in)
	assert.Equal(t, in, out)
}

func TestReset(t *testing.T) {
	c := NewDeltaConverter()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.ToDelta(statusSample(1, base, 100))
	c.Reset()

	// After a reset the series is new again.
	out := c.ToDelta(statusSample(1, base.Add(time.Minute), 150))
	assert.Equal(t, 150.0, out.Value)
}
