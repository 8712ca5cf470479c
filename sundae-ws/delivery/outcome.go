package delivery

import "net/http"

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	// Delivered means the gateway accepted the message for the connection.
	Delivered Outcome = iota
	// Stale means the connection no longer exists and should be forgotten.
	Stale
	// Transient covers network, throttling and server-side failures that may
	// succeed on retry.
	Transient
	// Fatal is any other unexpected failure.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Stale:
		return "stale"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps a management API response status onto an Outcome.
func Classify(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Delivered
	case statusCode == http.StatusGone, statusCode == http.StatusNotFound:
		return Stale
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return Transient
	default:
		return Fatal
	}
}
