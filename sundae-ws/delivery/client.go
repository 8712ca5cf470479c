// Package delivery pushes a message to a single API Gateway WebSocket
// connection through the @connections management endpoint.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"golang.org/x/time/rate"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"

	connectionsPath = "/@connections/"
)

// RetryPolicy controls how Transient outcomes are retried within one Send.
// MaxAttempts <= 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // delay before the second attempt, doubled after each retry
}

// Client delivers messages through the API Gateway management API. One SDK
// client is kept per gateway endpoint.
type Client struct {
	Credentials *credentials.Credentials // nil sends unsigned requests, e.g. against a local gateway
	HTTP        *http.Client
	Region      string
	Retry       RetryPolicy
	Limiter     *rate.Limiter // optional pacing shared by every Send on this client

	mgmtMu      sync.RWMutex
	mgmtClients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// New creates a client that signs with the given credentials for region.
func New(creds *credentials.Credentials, region string) *Client {
	if region == "" {
		region = DefaultRegion
	}
	return &Client{
		Credentials: creds,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
		Region:      region,
	}
}

// SplitEndpoint separates a connection callback URL,
// https://<domain>/<stage>/@connections/<id>, into the management API
// endpoint and the connection id.
func SplitEndpoint(endpoint string) (base, connectionID string, err error) {
	base, connectionID, ok := strings.Cut(endpoint, connectionsPath)
	if !ok || connectionID == "" || strings.Contains(connectionID, "/") {
		return "", "", fmt.Errorf("invalid endpoint %q: expected <base>%v<id>", endpoint, connectionsPath)
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid endpoint %q", endpoint)
	}
	connectionID, err = url.PathUnescape(connectionID)
	if err != nil {
		return "", "", fmt.Errorf("invalid connection id in %q: %w", endpoint, err)
	}
	return base, connectionID, nil
}

// Send posts payload to the connection at endpoint and classifies the result.
// The error is nil only for Delivered and otherwise describes what went wrong.
func (c *Client) Send(ctx context.Context, endpoint string, payload []byte) (Outcome, error) {
	base, connectionID, err := SplitEndpoint(endpoint)
	if err != nil {
		return Fatal, err
	}
	api, err := c.managementAPI(base)
	if err != nil {
		return Fatal, err
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Transient, fmt.Errorf("waiting for delivery rate limit: %w", err)
		}
	}

	_, err = api.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	if err != nil {
		return ClassifyError(err), fmt.Errorf("posting to %v: %w", endpoint, err)
	}
	return Delivered, nil
}

// ClassifyError maps an error from PostToConnection onto an Outcome.
func ClassifyError(err error) Outcome {
	var failure awserr.RequestFailure
	if errors.As(err, &failure) {
		return Classify(failure.StatusCode())
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case request.ErrCodeRequestError, request.CanceledErrorCode, request.ErrCodeResponseTimeout, "RequestTimeout", "RequestTimeoutException":
			return Transient
		}
	}
	return Fatal
}

func (c *Client) managementAPI(base string) (apigatewaymanagementapiiface.ApiGatewayManagementApiAPI, error) {
	c.mgmtMu.RLock()
	if api, ok := c.mgmtClients[base]; ok {
		c.mgmtMu.RUnlock()
		return api, nil
	}
	c.mgmtMu.RUnlock()

	c.mgmtMu.Lock()
	defer c.mgmtMu.Unlock()

	if api, ok := c.mgmtClients[base]; ok {
		return api, nil
	}
	if c.mgmtClients == nil {
		c.mgmtClients = map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI{}
	}

	creds := c.Credentials
	if creds == nil {
		creds = credentials.AnonymousCredentials
	}
	config := aws.NewConfig().
		WithEndpoint(base).
		WithRegion(c.region()).
		WithCredentials(creds)
	if c.HTTP != nil {
		config = config.WithHTTPClient(c.HTTP)
	}
	config = request.WithRetryer(config, c.retryer())

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("creating session for %v: %w", base, err)
	}
	api := apigatewaymanagementapi.New(sess)
	c.mgmtClients[base] = api
	return api, nil
}

// retryer retries throttling, 5xx and network failures up to
// Retry.MaxAttempts in total.
func (c *Client) retryer() client.DefaultRetryer {
	attempts := c.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryer := client.DefaultRetryer{NumMaxRetries: attempts - 1}
	if backoff := c.Retry.Backoff; backoff > 0 {
		ceiling := backoff << min(attempts, 16)
		retryer.MinRetryDelay = backoff
		retryer.MaxRetryDelay = ceiling
		retryer.MinThrottleDelay = backoff
		retryer.MaxThrottleDelay = ceiling
	}
	return retryer
}

func (c *Client) region() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}
