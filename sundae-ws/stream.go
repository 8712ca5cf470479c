package sundaews

import (
	"context"

	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/connectiondao"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/publish"
	"github.com/aws/aws-lambda-go/events"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"
)

// Publisher is the fan-out operation the entry points drive.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) (Result, error)
}

// StreamHandler broadcasts messages queued on the Kinesis messages stream.
type StreamHandler struct {
	Broadcaster Publisher
	Logger      zerolog.Logger
}

// HandleKinesisEvent broadcasts each record in the batch. Malformed records are
// skipped; a registry failure fails the batch so that it is redelivered.
func (s *StreamHandler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	for _, record := range event.Records {
		if err := s.handleRecord(ctx, record.EventID, record.Kinesis.Data); err != nil {
			return err
		}
	}
	return nil
}

func (s *StreamHandler) handleRecord(ctx context.Context, eventID string, data []byte) error {
	envelope, err := publish.Decode(data)
	if err != nil {
		s.Logger.Warn().Err(err).Str("event_id", eventID).Msg("skipping malformed record")
		return nil
	}
	if envelope.Message == "" {
		s.Logger.Warn().Str("event_id", eventID).Msg("skipping record with empty message")
		return nil
	}

	if _, err := s.Broadcaster.Publish(ctx, []byte(envelope.Message)); err != nil {
		if connectiondao.IsStorageError(err) {
			return err
		}
		s.Logger.Error().Err(err).Str("event_id", eventID).Msg("failed to broadcast record")
	}
	return nil
}

// Consume reads the stream directly, for running outside Lambda.
func (s *StreamHandler) Consume(ctx context.Context, streamName string) error {
	c, err := consumer.New(streamName, consumer.WithShardIteratorType("LATEST"))
	if err != nil {
		return err
	}

	s.Logger.Info().Str("stream", streamName).Msg("listening")
	return c.Scan(ctx, func(record *consumer.Record) error {
		return s.handleRecord(ctx, "", record.Data)
	})
}
