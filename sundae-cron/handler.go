// Package sundaecron runs a task on a schedule, either as a Lambda invoked by
// an EventBridge rule or once from the console.
package sundaecron

import (
	"context"
	"encoding/json"
	"time"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
)

type RunCallback func(ctx context.Context) error

// Timer records how long each run took.
type Timer interface {
	Timing(ctx context.Context, name sundaecli.MetricName, start time.Time, dimensions ...map[sundaecli.DimensionName]string)
}

type Handler struct {
	operation string
	logger    zerolog.Logger
	metrics   Timer

	runOnce RunCallback
}

func NewHandler(
	operation string,
	logger zerolog.Logger,
	metrics Timer,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		operation: operation,
		logger:    logger.With().Str("operation", operation).Logger(),
		metrics:   metrics,
		runOnce:   runOnce,
	}
}

// RunOnce is the Lambda entry point. The scheduled event payload is ignored.
func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	start := time.Now()
	ctx = h.logger.WithContext(ctx)

	h.logger.Info().Msg("running scheduled task")
	err := h.runOnce(ctx)
	if err != nil {
		h.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("scheduled task failed")
	} else {
		h.logger.Info().Dur("elapsed", time.Since(start)).Msg("scheduled task complete")
	}

	if h.metrics != nil {
		h.metrics.Timing(ctx, sundaecli.ResponseTimeMetric, start, map[sundaecli.DimensionName]string{
			sundaecli.OperationNameDimension: h.operation,
		})
	}
	return err
}

func (h *Handler) Start() error {
	switch {
	case sundaecli.CommonOpts.Console:
		return h.RunOnce(context.Background(), nil)

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
