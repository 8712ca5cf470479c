package sundaews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/connectiondao"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MaxMessageSize is the largest payload API Gateway accepts for a single
// WebSocket frame.
const MaxMessageSize = 128 * 1024

// maxRequestBody allows every byte of a maximal message to be JSON escaped as
// \uXXXX.
const maxRequestBody = 6*MaxMessageSize + 1024

// Queue accepts messages for asynchronous broadcast.
type Queue interface {
	Send(ctx context.Context, message []byte) error
}

// PublishRequest is the body of POST /log.
type PublishRequest struct {
	Message *string `json:"message"`
}

type queuedResponse struct {
	Queued bool `json:"queued"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API serves the publish endpoint. When Queue is set messages are handed to
// the stream and broadcast asynchronously; otherwise the broadcast runs inline
// within the request.
type API struct {
	Broadcaster Publisher
	Queue       Queue
	Logger      zerolog.Logger
}

// Routes mounts the publish endpoint on router.
func (a *API) Routes(router chi.Router) chi.Router {
	router.Post("/log", a.handlePublish)
	return router
}

// ParsePublishRequest validates a publish body and returns the message.
func ParsePublishRequest(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxRequestBody+1))
	if err != nil {
		return nil, &ValidationError{Field: "body", Reason: fmt.Sprintf("unreadable: %v", err)}
	}
	if len(body) > maxRequestBody {
		return nil, &ValidationError{Field: "body", Reason: fmt.Sprintf("exceeds %d bytes", maxRequestBody)}
	}

	var req PublishRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &ValidationError{Field: "body", Reason: fmt.Sprintf("malformed json: %v", err)}
	}
	if req.Message == nil || *req.Message == "" {
		return nil, &ValidationError{Field: "message", Reason: "required"}
	}
	if len(*req.Message) > MaxMessageSize {
		return nil, &ValidationError{Field: "message", Reason: fmt.Sprintf("exceeds %d bytes", MaxMessageSize)}
	}
	return []byte(*req.Message), nil
}

func (a *API) handlePublish(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := a.logger(ctx)

	message, err := ParsePublishRequest(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("rejecting publish request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if a.Queue != nil {
		if err := a.Queue.Send(ctx, message); err != nil {
			logger.Error().Err(err).Msg("failed to queue message")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unable to queue message"})
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{Queued: true})
		return
	}

	result, err := a.Broadcaster.Publish(ctx, message)
	if err != nil {
		logger.Error().Err(err).Msg("publish aborted")
		status := http.StatusInternalServerError
		if connectiondao.IsStorageError(err) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: "connection registry unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// logger prefers the request-scoped logger installed by the REST middleware.
func (a *API) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
