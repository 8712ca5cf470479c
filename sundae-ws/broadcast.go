// Package sundaews implements the broadcast core of an API Gateway WebSocket
// service: connection lifecycle handlers, the publish fan-out, and the
// entry points that drive them.
package sundaews

import (
	"context"
	"sync"
	"time"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/connectiondao"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/delivery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency caps in-flight deliveries when Broadcaster.Concurrency
	// is unset.
	DefaultConcurrency = 50
	// DefaultTimeout bounds one fan-out, leaving headroom under a 30s API
	// Gateway integration timeout.
	DefaultTimeout = 25 * time.Second
	// DefaultPruneTimeout bounds removal of stale connections after the
	// fan-out.
	DefaultPruneTimeout = 5 * time.Second
)

// Registry is the connection store used by the lifecycle handlers and the
// broadcaster.
type Registry interface {
	Register(ctx context.Context, connectionID, endpoint string) error
	Remove(ctx context.Context, connectionID string) error
	ListAll(ctx context.Context, fn func(conn connectiondao.Connection) error) error
}

// Deliverer sends one message to one connection endpoint.
type Deliverer interface {
	Send(ctx context.Context, endpoint string, payload []byte) (delivery.Outcome, error)
}

// MetricsRecorder is satisfied by sundaecli.Metrics.
type MetricsRecorder interface {
	Timing(ctx context.Context, name sundaecli.MetricName, start time.Time, dimensions ...map[sundaecli.DimensionName]string)
	Gauge(ctx context.Context, name sundaecli.MetricName, value float64, dimensions ...map[sundaecli.DimensionName]string)
}

// Result summarises one publish. Counts reflect outcomes known when Publish
// returned; deliveries still in flight after a timeout are not included.
type Result struct {
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Stale     int  `json:"stale"`
	Transient int  `json:"transient"`
	Fatal     int  `json:"fatal"`
	Pruned    int  `json:"pruned"`
	TimedOut  bool `json:"timed_out,omitempty"`
}

// Broadcaster fans a published message out to every registered connection.
type Broadcaster struct {
	Registry     Registry
	Delivery     Deliverer
	Logger       zerolog.Logger
	Metrics      MetricsRecorder // optional
	Concurrency  int             // max concurrent deliveries (default 50)
	Timeout      time.Duration   // fan-out deadline (default 25s)
	PruneTimeout time.Duration   // budget for removing stale connections (default 5s)
}

// fanOut collects delivery outcomes from concurrent workers.
type fanOut struct {
	mu     sync.Mutex
	result Result
	stale  []string
}

func (f *fanOut) attempt() {
	f.mu.Lock()
	f.result.Attempted++
	f.mu.Unlock()
}

func (f *fanOut) record(conn connectiondao.Connection, outcome delivery.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch outcome {
	case delivery.Delivered:
		f.result.Delivered++
	case delivery.Stale:
		f.result.Stale++
		f.stale = append(f.stale, conn.ConnectionID)
	case delivery.Transient:
		f.result.Transient++
	default:
		f.result.Fatal++
	}
}

func (f *fanOut) snapshot() (Result, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, append([]string(nil), f.stale...)
}

// Publish attempts delivery of payload to every known connection and prunes
// the connections reported stale. Delivery failures never fail the publish;
// only a registry failure while listing is returned as an error.
func (b *Broadcaster) Publish(ctx context.Context, payload []byte) (Result, error) {
	start := time.Now()

	fanCtx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	var (
		f      fanOut
		listed = make(chan error, 1)
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(b.concurrency())

		err := b.Registry.ListAll(fanCtx, func(conn connectiondao.Connection) error {
			if err := fanCtx.Err(); err != nil {
				return err
			}
			g.Go(func() error {
				f.attempt()
				outcome, err := b.Delivery.Send(fanCtx, conn.Endpoint, payload)
				b.logOutcome(conn, outcome, err)
				f.record(conn, outcome)
				return nil
			})
			return nil
		})
		listed <- err
		g.Wait()
	}()

	var listErr error
	timedOut := false
	select {
	case listErr = <-listed:
		select {
		case <-done:
		case <-fanCtx.Done():
			timedOut = true
		}
	case <-fanCtx.Done():
		timedOut = true
		select {
		case listErr = <-listed:
		default:
		}
	}
	if listErr != nil && fanCtx.Err() != nil && !connectiondao.IsStorageError(listErr) {
		timedOut, listErr = true, nil
	}

	result, stale := f.snapshot()
	result.TimedOut = timedOut
	if timedOut {
		b.Logger.Warn().
			Int("attempted", result.Attempted).
			Dur("timeout", b.timeout()).
			Msg("publish deadline reached, abandoning in-flight deliveries")
	}
	if listErr != nil {
		b.Logger.Error().Err(listErr).Msg("failed to list connections, aborting publish")
	}

	result.Pruned = b.prune(context.WithoutCancel(ctx), stale)

	b.Logger.Info().
		Int("attempted", result.Attempted).
		Int("delivered", result.Delivered).
		Int("stale", result.Stale).
		Int("transient", result.Transient).
		Int("fatal", result.Fatal).
		Int("pruned", result.Pruned).
		Dur("elapsed", time.Since(start)).
		Msg("publish complete")

	b.emitMetrics(context.WithoutCancel(ctx), start, result)

	return result, listErr
}

func (b *Broadcaster) logOutcome(conn connectiondao.Connection, outcome delivery.Outcome, err error) {
	switch outcome {
	case delivery.Delivered:
		b.Logger.Debug().Str("connection_id", conn.ConnectionID).Msg("delivered")
	case delivery.Stale:
		b.Logger.Info().Str("connection_id", conn.ConnectionID).Err(err).Msg("connection gone, cleaning up")
	default:
		b.Logger.Warn().
			Str("connection_id", conn.ConnectionID).
			Str("outcome", outcome.String()).
			Err(err).
			Msg("delivery failed")
	}
}

// prune removes stale connections, best effort. It returns how many were
// removed.
func (b *Broadcaster) prune(ctx context.Context, stale []string) int {
	if len(stale) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, b.pruneTimeout())
	defer cancel()

	var (
		mu     sync.Mutex
		pruned int
		g      errgroup.Group
	)
	g.SetLimit(b.concurrency())
	for _, connID := range stale {
		g.Go(func() error {
			if err := b.Registry.Remove(ctx, connID); err != nil {
				b.Logger.Error().Err(err).Str("connection_id", connID).Msg("failed to delete gone connection")
				return nil
			}
			mu.Lock()
			pruned++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return pruned
}

func (b *Broadcaster) emitMetrics(ctx context.Context, start time.Time, result Result) {
	if b.Metrics == nil {
		return
	}
	b.Metrics.Timing(ctx, sundaecli.PublishDurationMetric, start)
	for outcome, count := range map[delivery.Outcome]int{
		delivery.Delivered: result.Delivered,
		delivery.Stale:     result.Stale,
		delivery.Transient: result.Transient,
		delivery.Fatal:     result.Fatal,
	} {
		b.Metrics.Gauge(ctx, sundaecli.DeliveryOutcomeMetric, float64(count), map[sundaecli.DimensionName]string{
			sundaecli.OutcomeDimension: outcome.String(),
		})
	}
	b.Metrics.Gauge(ctx, sundaecli.PrunedMetric, float64(result.Pruned))
}

func (b *Broadcaster) concurrency() int {
	if b.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return b.Concurrency
}

func (b *Broadcaster) timeout() time.Duration {
	if b.Timeout <= 0 {
		return DefaultTimeout
	}
	return b.Timeout
}

func (b *Broadcaster) pruneTimeout() time.Duration {
	if b.PruneTimeout <= 0 {
		return DefaultPruneTimeout
	}
	return b.PruneTimeout
}
