package sundaews

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/publish"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func kinesisRecord(id string, data []byte) events.KinesisEventRecord {
	return events.KinesisEventRecord{
		EventID: id,
		Kinesis: events.KinesisRecord{Data: data},
	}
}

func envelope(t *testing.T, message string) []byte {
	data, err := json.Marshal(publish.Envelope{Message: message, PublishedAt: 1})
	assert.Nil(t, err)
	return data
}

func TestHandleKinesisEvent(t *testing.T) {
	var (
		ctx       = context.Background()
		registry  = newMemoryRegistry()
		deliverer = newFakeDeliverer()
		handler   = &StreamHandler{Broadcaster: newTestBroadcaster(registry, deliverer), Logger: zerolog.Nop()}
	)
	register(t, registry, "c1")

	err := handler.HandleKinesisEvent(ctx, events.KinesisEvent{
		Records: []events.KinesisEventRecord{
			kinesisRecord("1", envelope(t, "first")),
			kinesisRecord("2", []byte("{not json")),
			kinesisRecord("3", envelope(t, "")),
			kinesisRecord("4", envelope(t, "second")),
		},
	})
	assert.Nil(t, err)
	assert.Equal(t, []sendCall{
		{Endpoint: "https://x/y/c1", Payload: "first"},
		{Endpoint: "https://x/y/c1", Payload: "second"},
	}, deliverer.calls)
}

func TestHandleKinesisEventStorageError(t *testing.T) {
	var (
		ctx       = context.Background()
		registry  = newMemoryRegistry()
		deliverer = newFakeDeliverer()
		handler   = &StreamHandler{Broadcaster: newTestBroadcaster(registry, deliverer), Logger: zerolog.Nop()}
	)
	registry.listErr = errors.New("unreachable")

	err := handler.HandleKinesisEvent(ctx, events.KinesisEvent{
		Records: []events.KinesisEventRecord{kinesisRecord("1", envelope(t, "hello"))},
	})
	assert.NotNil(t, err)
}
