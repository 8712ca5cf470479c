package connectiondao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DefaultTTL matches the maximum lifetime of an API Gateway WebSocket
// connection.
const DefaultTTL = 2 * time.Hour

// DAO provides access to the WebSocket connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string

	TTL      time.Duration    // lifetime stamped on new records; zero disables expiry
	PageSize int64            // items per query page; zero uses the DynamoDB default
	Now      func() time.Time // clock, for tests
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
		TTL:       DefaultTTL,
		Now:       time.Now,
	}
}

func (d *DAO) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Register stores the connection, overwriting any previous record for the
// same id.
func (d *DAO) Register(ctx context.Context, connectionID, endpoint string) error {
	conn := NewConnection(connectionID, endpoint, d.now(), d.TTL)
	if err := d.table.Put(conn).RunWithContext(ctx); err != nil {
		return &StorageError{Op: "register", ConnectionID: connectionID, Err: err}
	}
	return nil
}

// Remove deletes the connection. Removing an unknown id is not an error.
func (d *DAO) Remove(ctx context.Context, connectionID string) error {
	if err := d.table.Delete(Category).Range(connectionID).RunWithContext(ctx); err != nil {
		return &StorageError{Op: "remove", ConnectionID: connectionID, Err: err}
	}
	return nil
}

// ListAll streams every live connection to fn, one query page at a time.
// Iteration stops at the first error returned by fn, which is returned as is.
func (d *DAO) ListAll(ctx context.Context, fn func(conn Connection) error) error {
	now := d.now()
	return d.each(ctx, "list", func(conn Connection) error {
		if conn.Expired(now) {
			return nil
		}
		return fn(conn)
	})
}

// ListExpired streams the records whose TTL has passed but which DynamoDB has
// not reaped yet.
func (d *DAO) ListExpired(ctx context.Context, fn func(conn Connection) error) error {
	now := d.now()
	return d.each(ctx, "list expired", func(conn Connection) error {
		if !conn.Expired(now) {
			return nil
		}
		return fn(conn)
	})
}

// Count returns the number of connection records, expired ones included.
func (d *DAO) Count(ctx context.Context) (int64, error) {
	input := d.queryInput()
	input.Select = aws.String(dynamodb.SelectCount)

	var total int64
	err := d.api.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, _ bool) bool {
		total += aws.Int64Value(page.Count)
		return true
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &StorageError{Op: "count", Err: err}
	}
	return total, nil
}

func (d *DAO) queryInput() *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String("pk"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk": {S: aws.String(Category)},
		},
	}
	if d.PageSize > 0 {
		input.Limit = aws.Int64(d.PageSize)
	}
	return input
}

func (d *DAO) each(ctx context.Context, op string, fn func(conn Connection) error) error {
	var callbackErr error
	err := d.api.QueryPagesWithContext(ctx, d.queryInput(), func(page *dynamodb.QueryOutput, _ bool) bool {
		for _, item := range page.Items {
			var conn Connection
			if err := dynamodbattribute.UnmarshalMap(item, &conn); err != nil {
				callbackErr = &StorageError{Op: op, Err: fmt.Errorf("unable to decode connection record: %w", err)}
				return false
			}
			if err := fn(conn); err != nil {
				callbackErr = err
				return false
			}
		}
		return true
	})
	if callbackErr != nil {
		return callbackErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StorageError{Op: op, Err: err}
	}
	return nil
}
