package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC)
	mean := 0.42
	rec := domain.AnomalyRecord{
		ID:          "skt-74a9c01bd2f3e688",
		Dataset:     "era5-monthly",
		Variable:    "skt",
		Time:        time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Year:        2024,
		Month:       7,
		MeanAnomaly: &mean,
		FiniteCells: 64800,
		ProcessedAt: now,
	}

	msg, err := serializeToMessage("run-1", rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("skt-74a9c01bd2f3e688"), msg.Key)
	assert.Contains(t, string(msg.Value), `"mean_anomaly":0.42`)
	assert.Contains(t, string(msg.Value), `"dataset":"era5-monthly"`)
	assert.Len(t, msg.Headers, 3)
	assert.Equal(t, "variable", msg.Headers[0].Key)
	assert.Equal(t, []byte("skt"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSerializeToMessage_AllMissingMonth(t *testing.T) {
	rec := domain.AnomalyRecord{
		ID:           "skt-0000000000000000",
		Dataset:      "era5-monthly",
		Variable:     "skt",
		Time:         time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		Year:         2024,
		Month:        8,
		MissingCells: 64800,
		ProcessedAt:  time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage("run-1", rec)
	require.NoError(t, err)

	// A month with no finite cells publishes null aggregates, never zeros.
	assert.Contains(t, string(msg.Value), `"mean_anomaly":null`)
	assert.Contains(t, string(msg.Value), `"min_anomaly":null`)
	assert.Contains(t, string(msg.Value), `"max_anomaly":null`)
}
