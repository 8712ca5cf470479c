package sundaews

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// ConnectEvent is the transport metadata of a new WebSocket connection.
type ConnectEvent struct {
	ConnectionID string `json:"connectionId"`
	DomainName   string `json:"domainName"`
	Stage        string `json:"stage"`
}

// DisconnectEvent identifies a closed WebSocket connection.
type DisconnectEvent struct {
	ConnectionID string `json:"connectionId"`
}

// Endpoint returns the management API address used to push messages to a
// connection.
func Endpoint(domainName, stage, connectionID string) string {
	return fmt.Sprintf("https://%s/%s/@connections/%s", domainName, stage, connectionID)
}

// Handler translates WebSocket lifecycle events into registry operations.
type Handler struct {
	Connections Registry
	Logger      zerolog.Logger
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	rc := req.RequestContext
	switch rc.RouteKey {
	case "$connect":
		return h.OnConnect(ctx, ConnectEvent{
			ConnectionID: rc.ConnectionID,
			DomainName:   rc.DomainName,
			Stage:        rc.Stage,
		})
	case "$disconnect":
		return h.OnDisconnect(ctx, DisconnectEvent{ConnectionID: rc.ConnectionID})
	case "$default":
		// clients have nothing to say to the service; frames are dropped
		h.Logger.Debug().Str("connection_id", rc.ConnectionID).Msg("ignoring client message")
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	default:
		h.Logger.Warn().Str("route", rc.RouteKey).Msg("unknown route")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

// OnConnect registers the connection. A registry failure rejects the
// connection.
func (h *Handler) OnConnect(ctx context.Context, event ConnectEvent) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", event.ConnectionID).
		Str("route", "$connect").
		Logger()

	if err := errors.Join(
		required("connectionId", event.ConnectionID),
		required("domainName", event.DomainName),
		required("stage", event.Stage),
	); err != nil {
		logger.Warn().Err(err).Msg("rejecting malformed connect event")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}

	endpoint := Endpoint(event.DomainName, event.Stage, event.ConnectionID)
	if err := h.Connections.Register(ctx, event.ConnectionID, endpoint); err != nil {
		logger.Error().Err(err).Msg("failed to store connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Str("endpoint", endpoint).Msg("connection established")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

// OnDisconnect forgets the connection. Unknown connections are not an error.
func (h *Handler) OnDisconnect(ctx context.Context, event DisconnectEvent) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", event.ConnectionID).
		Str("route", "$disconnect").
		Logger()

	if err := required("connectionId", event.ConnectionID); err != nil {
		logger.Warn().Err(err).Msg("rejecting malformed disconnect event")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}

	if err := h.Connections.Remove(ctx, event.ConnectionID); err != nil {
		logger.Error().Err(err).Msg("failed to delete connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}
