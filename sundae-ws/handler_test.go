package sundaews

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func websocketRequest(route, connID string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			RouteKey:     route,
			ConnectionID: connID,
			DomainName:   "d",
			Stage:        "s",
		},
	}
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://d/s/@connections/c3", Endpoint("d", "s", "c3"))
}

func TestConnectThenDisconnect(t *testing.T) {
	var (
		ctx      = context.Background()
		registry = newMemoryRegistry()
		h        = &Handler{Connections: registry, Logger: zerolog.Nop()}
	)

	resp, err := h.OnConnect(ctx, ConnectEvent{ConnectionID: "c3", DomainName: "d", Stage: "s"})
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []string{"c3"}, registry.ids())
	assert.Equal(t, "https://d/s/@connections/c3", registry.conns["c3"].Endpoint)

	resp, err = h.OnDisconnect(ctx, DisconnectEvent{ConnectionID: "c3"})
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []string{}, registry.ids())
}

func TestReconnectIsFreshRecord(t *testing.T) {
	var (
		ctx      = context.Background()
		registry = newMemoryRegistry()
		h        = &Handler{Connections: registry, Logger: zerolog.Nop()}
	)

	_, _ = h.OnConnect(ctx, ConnectEvent{ConnectionID: "c1", DomainName: "d", Stage: "s"})
	_, _ = h.OnDisconnect(ctx, DisconnectEvent{ConnectionID: "c1"})
	resp, _ := h.OnConnect(ctx, ConnectEvent{ConnectionID: "c1", DomainName: "d2", Stage: "s"})
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://d2/s/@connections/c1", registry.conns["c1"].Endpoint)
}

func TestDisconnectUnknownConnection(t *testing.T) {
	h := &Handler{Connections: newMemoryRegistry(), Logger: zerolog.Nop()}

	resp, err := h.OnDisconnect(context.Background(), DisconnectEvent{ConnectionID: "missing"})
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestMalformedEvents(t *testing.T) {
	var (
		ctx      = context.Background()
		registry = newMemoryRegistry()
		h        = &Handler{Connections: registry, Logger: zerolog.Nop()}
	)

	for _, event := range []ConnectEvent{
		{DomainName: "d", Stage: "s"},
		{ConnectionID: "c1", Stage: "s"},
		{ConnectionID: "c1", DomainName: "d"},
	} {
		resp, err := h.OnConnect(ctx, event)
		assert.Nil(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	}
	assert.Equal(t, []string{}, registry.ids())

	resp, err := h.OnDisconnect(ctx, DisconnectEvent{})
	assert.Nil(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Len(t, registry.removed, 0)
}

func TestStorageFailureRejects(t *testing.T) {
	var (
		ctx      = context.Background()
		registry = newMemoryRegistry()
		h        = &Handler{Connections: registry, Logger: zerolog.Nop()}
	)
	registry.registerErr = errors.New("unreachable")
	registry.removeErr = errors.New("unreachable")

	resp, err := h.OnConnect(ctx, ConnectEvent{ConnectionID: "c1", DomainName: "d", Stage: "s"})
	assert.Nil(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	resp, err = h.OnDisconnect(ctx, DisconnectEvent{ConnectionID: "c1"})
	assert.Nil(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestHandleEventRouting(t *testing.T) {
	var (
		ctx      = context.Background()
		registry = newMemoryRegistry()
		h        = &Handler{Connections: registry, Logger: zerolog.Nop()}
	)

	resp, err := h.HandleEvent(ctx, websocketRequest("$connect", "c1"))
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://d/s/@connections/c1", registry.conns["c1"].Endpoint)

	resp, err = h.HandleEvent(ctx, websocketRequest("$default", "c1"))
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = h.HandleEvent(ctx, websocketRequest("sendMessage", "c1"))
	assert.Nil(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = h.HandleEvent(ctx, websocketRequest("$disconnect", "c1"))
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []string{}, registry.ids())
}

func TestValidationError(t *testing.T) {
	err := required("stage", "")
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "invalid stage: required", err.Error())
	assert.Nil(t, required("stage", "prod"))
	assert.False(t, IsValidationError(errors.New("other")))
}
