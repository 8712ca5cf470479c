package connectiondao

import "time"

const (
	// Category is the partition every connection record lives under.
	Category = "connection"
	// SchemaVersion tags the record layout.
	SchemaVersion = "1"
)

// Connection represents a WebSocket connection stored in DynamoDB.
type Connection struct {
	Category     string `dynamodbav:"pk" ddb:"hash"`
	Key          string `dynamodbav:"sk" ddb:"range"`
	Type         string `dynamodbav:"type"`
	Version      string `dynamodbav:"version"`
	ConnectionID string `dynamodbav:"connectionId"`
	Endpoint     string `dynamodbav:"connectionUrl"`
	ConnectedAt  int64  `dynamodbav:"connected_at,omitempty"`
	TTL          int64  `dynamodbav:"ttl,omitempty"`
}

// NewConnection builds the record for a connection registered at now. A zero
// ttl means the record never expires.
func NewConnection(id, endpoint string, now time.Time, ttl time.Duration) Connection {
	conn := Connection{
		Category:     Category,
		Key:          id,
		Type:         Category,
		Version:      SchemaVersion,
		ConnectionID: id,
		Endpoint:     endpoint,
		ConnectedAt:  now.Unix(),
	}
	if ttl > 0 {
		conn.TTL = now.Add(ttl).Unix()
	}
	return conn
}

// Expired reports whether the record outlived its TTL as of now.
func (c Connection) Expired(now time.Time) bool {
	return c.TTL > 0 && c.TTL <= now.Unix()
}
