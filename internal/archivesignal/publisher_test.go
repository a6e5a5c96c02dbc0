package archivesignal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	sent []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.sent = append(f.sent, msgs...)
	return nil
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher("  ", "topic")
	require.Error(t, err)
}

func TestPublisherPublishesJSONEvent(t *testing.T) {
	fw := &fakeWriter{}
	p := &Publisher{writer: fw, topic: "docmind.archive-indexed"}

	require.NoError(t, p.Publish(context.Background(), "/sources/help_en.hbk", 12))
	require.Len(t, fw.sent, 1)
	require.Equal(t, "/sources/help_en.hbk", string(fw.sent[0].Key))

	var evt ArchiveIndexedEvent
	require.NoError(t, json.Unmarshal(fw.sent[0].Value, &evt))
	require.Equal(t, "/sources/help_en.hbk", evt.ArchivePath)
	require.Equal(t, 12, evt.TopicCount)
	require.NotEmpty(t, evt.IndexedAt)
}
