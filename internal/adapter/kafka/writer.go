package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// Writer produces anomaly records to a Kafka topic.
// It implements pipeline.RecordWriter.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured anomaly topic.
// Messages are keyed by record ID, which is deterministic per dataset,
// variable and timestep, so the topic can be log-compacted and re-runs
// land on the same partition.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Compression:  kafkago.Snappy,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes the anomaly records of one pipeline run
// in a single WriteMessages call for efficiency.
func (w *Writer) LoadBatch(ctx context.Context, runID string, records []domain.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(runID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AnomalyRecord into a Kafka message. The run
// ID travels in a header so the record body stays deterministic across runs.
func serializeToMessage(runID string, rec domain.AnomalyRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variable", Value: []byte(rec.Variable)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
