package sundaews

import (
	"context"
	"errors"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/connectiondao"
	"github.com/rs/zerolog"
)

// SweepRegistry is the subset of the registry the sweeper needs.
type SweepRegistry interface {
	ListExpired(ctx context.Context, fn func(conn connectiondao.Connection) error) error
	Remove(ctx context.Context, connectionID string) error
	Count(ctx context.Context) (int64, error)
}

// Sweeper removes connection records that outlived their TTL. DynamoDB reaps
// expired items on its own schedule, which can lag by hours.
type Sweeper struct {
	Registry SweepRegistry
	Logger   zerolog.Logger
	Metrics  MetricsRecorder // optional
	Dry      bool
}

// Run performs one sweep and reports the remaining connection count.
func (s *Sweeper) Run(ctx context.Context) error {
	var expired []string
	err := s.Registry.ListExpired(ctx, func(conn connectiondao.Connection) error {
		expired = append(expired, conn.ConnectionID)
		return nil
	})
	if err != nil {
		return err
	}

	var errs []error
	removed := 0
	for _, connID := range expired {
		if s.Dry {
			s.Logger.Info().Str("connection_id", connID).Msg("dry run, would remove expired connection")
			continue
		}
		if err := s.Registry.Remove(ctx, connID); err != nil {
			s.Logger.Error().Err(err).Str("connection_id", connID).Msg("failed to remove expired connection")
			errs = append(errs, err)
			continue
		}
		removed++
	}

	count, err := s.Registry.Count(ctx)
	if err != nil {
		errs = append(errs, err)
	} else if s.Metrics != nil {
		s.Metrics.Gauge(ctx, sundaecli.ConnectionCountMetric, float64(count))
	}

	s.Logger.Info().
		Int("expired", len(expired)).
		Int("removed", removed).
		Int64("count", count).
		Msg("sweep complete")

	return errors.Join(errs...)
}
