// Package publish queues messages for asynchronous broadcast through a
// Kinesis stream.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

// Envelope is the record format written to the messages stream.
type Envelope struct {
	Message     string `json:"message"`
	PublishedAt int64  `json:"published_at"` // unix millis
}

// Decode parses a stream record.
func Decode(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("unmarshalling envelope: %w", err)
	}
	return envelope, nil
}

// Publisher publishes messages to the broadcast Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
	now        func() time.Time
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
		now:        time.Now,
	}
}

// Build creates a new Publisher using the standard stream name for the given
// environment.
func Build(s *session.Session, env string) *Publisher {
	return New(kinesis.New(s), StreamName(env))
}

// StreamName returns the Kinesis stream name for the given environment.
func StreamName(env string) string {
	return env + "-shoutlog-messages"
}

// Send enqueues a message. Publishes carry no ordering guarantee, so the
// partition key only spreads records across shards.
func (p *Publisher) Send(ctx context.Context, message []byte) error {
	now := p.now()
	data, err := json.Marshal(Envelope{
		Message:     string(message),
		PublishedAt: now.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(strconv.FormatInt(now.UnixNano(), 36)),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}
