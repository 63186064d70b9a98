package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

func constantWindows(n int, cpu float64) []models.TimelineWindow {
	windows := make([]models.TimelineWindow, n)
	for i := range windows {
		windows[i] = models.TimelineWindow{
			Start: float64(i * 300),
			End:   float64((i + 1) * 300),
			CPU:   cpu,
		}
	}
	return windows
}

func TestDetectAnomaliesConstantSignalFlagsNothing(t *testing.T) {
	// A nonzero constant has zero variance; every value equals the mean and
	// no window may be flagged.
	out := DetectAnomalies(constantWindows(12, 0.5))

	require.Len(t, out, 12)
	for i, w := range out {
		assert.False(t, w.IsAnomaly, "window %d", i)
	}
}

func TestDetectAnomaliesSingleSpike(t *testing.T) {
	windows := constantWindows(12, 0.5)
	windows[7].CPU = 0.95

	out := DetectAnomalies(windows)

	require.Len(t, out, 12)
	for i, w := range out {
		assert.Equal(t, i == 7, w.IsAnomaly, "window %d", i)
	}
}

func TestDetectAnomaliesFoldsSignals(t *testing.T) {
	windows := constantWindows(12, 0.5)
	windows[2].Errors5xx = 40
	windows[9].ErrorLogCount = 25

	out := DetectAnomalies(windows)

	for i, w := range out {
		want := i == 2 || i == 9
		assert.Equal(t, want, w.IsAnomaly, "window %d", i)
	}
}

func TestDetectAnomaliesGradualDriftNotFlagged(t *testing.T) {
	// A linear ramp has high variance but no single outlier more than two
	// standard deviations above the mean.
	windows := make([]models.TimelineWindow, 12)
	for i := range windows {
		windows[i].CPU = 0.1 * float64(i)
	}

	out := DetectAnomalies(windows)
	for i, w := range out {
		assert.False(t, w.IsAnomaly, "window %d", i)
	}
}

func TestDetectAnomaliesDoesNotMutateInput(t *testing.T) {
	windows := constantWindows(12, 0.5)
	windows[3].CPU = 5.0

	_ = DetectAnomalies(windows)

	for i, w := range windows {
		assert.False(t, w.IsAnomaly, "input window %d must stay unflagged", i)
	}
}

func TestDetectAnomaliesEmpty(t *testing.T) {
	assert.Empty(t, DetectAnomalies(nil))
}
