package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

func TestValidateSample(t *testing.T) {
	p := NewTelemetryProcessor(&Config{}, nil, zap.NewNop())
	now := time.Now()

	tests := []struct {
		name    string
		sample  models.StoredSample
		wantErr bool
	}{
		{
			name:   "valid cpu sample",
			sample: models.StoredSample{Stream: models.StreamCPU, Timestamp: now, Value: 0.4},
		},
		{
			name:   "valid status sample",
			sample: models.StoredSample{Stream: models.StreamStatus, Timestamp: now, StatusCode: 200, Value: 10},
		},
		{
			name:    "missing stream",
			sample:  models.StoredSample{Timestamp: now},
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			sample:  models.StoredSample{Stream: models.StreamCPU},
			wantErr: true,
		},
		{
			name:    "timestamp in the future",
			sample:  models.StoredSample{Stream: models.StreamCPU, Timestamp: now.Add(48 * time.Hour)},
			wantErr: true,
		},
		{
			name:    "timestamp too old",
			sample:  models.StoredSample{Stream: models.StreamCPU, Timestamp: now.Add(-31 * 24 * time.Hour)},
			wantErr: true,
		},
		{
			name:    "status sample without code",
			sample:  models.StoredSample{Stream: models.StreamStatus, Timestamp: now, Value: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.validateSample(tt.sample)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
