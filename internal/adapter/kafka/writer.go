package kafka

import (
	"context"
	"log/slog"
	"sort"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/lake-telemetry-etl/internal/config"
	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

// Writer produces fused telemetry rows to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured telemetry topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Compression:  kafkago.Snappy,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch publishes a whole flow's rows in a single WriteMessages call
// for efficiency.
func (w *Writer) PublishBatch(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafkago.Message, len(msgs))
	for i := range msgs {
		out[i] = mapMessage(msgs[i])
	}
	return w.writer.WriteMessages(ctx, out...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// mapMessage converts a domain message to the wire type. Headers go out in
// sorted key order so identical batches serialize identically.
func mapMessage(m domain.Message) kafkago.Message {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(m.Headers[k])})
	}
	return kafkago.Message{Key: m.Key, Value: m.Value, Headers: headers}
}
