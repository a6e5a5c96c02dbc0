// Package archivesignal publishes a small JSON event to Kafka whenever the
// ingest orchestrator finishes indexing an archive, letting a
// docmind-server process running in split mode learn about new content
// without itself running the watcher. Grounded on the teacher's
// internal/tools/kafka/producer.go Writer interface and NewProducerFromBrokers
// constructor, generalized from a generic "send any message" tool to a
// single typed event publisher.
package archivesignal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"docmind/internal/apperr"
)

// Writer is the subset of *kafka.Writer this package needs, so tests can
// substitute a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ArchiveIndexedEvent is the payload published after each archive is
// successfully indexed.
type ArchiveIndexedEvent struct {
	ArchivePath string `json:"archive_path"`
	TopicCount  int    `json:"topic_count"`
	IndexedAt   string `json:"indexed_at"`
}

// Publisher publishes ArchiveIndexedEvents to a single Kafka topic.
type Publisher struct {
	writer Writer
	topic  string
}

// NewPublisher builds a Publisher from a comma-separated broker list, the
// same format the teacher accepts in NewProducerFromBrokers.
func NewPublisher(brokers, topic string) (*Publisher, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, apperr.New(apperr.Configuration, "kafka brokers are required", nil)
	}
	list := strings.Split(brokers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(list...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Publisher{writer: w, topic: topic}, nil
}

// Publish sends one ArchiveIndexedEvent, keyed by archive path so a
// consumer can deduplicate retries.
func (p *Publisher) Publish(ctx context.Context, archivePath string, topicCount int) error {
	evt := ArchiveIndexedEvent{
		ArchivePath: archivePath,
		TopicCount:  topicCount,
		IndexedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return apperr.New(apperr.InvalidInput, "marshal archive-indexed event", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(archivePath), Value: data}); err != nil {
		return apperr.New(apperr.Retriable, fmt.Sprintf("publish archive-indexed event to %s", p.topic), err)
	}
	return nil
}

// Close releases the underlying Kafka connection.
func (p *Publisher) Close() error {
	if c, ok := p.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
