package connectiondao

import (
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// mockDynamoDB keeps items in memory keyed by pk/sk. Only the calls the DAO
// makes are implemented.
type mockDynamoDB struct {
	dynamodbiface.DynamoDBAPI

	mu    sync.Mutex
	items map[string]map[string]*dynamodb.AttributeValue
	pages int
	err   error
}

func newMockDynamoDB() *mockDynamoDB {
	return &mockDynamoDB{items: map[string]map[string]*dynamodb.AttributeValue{}}
}

func itemKey(item map[string]*dynamodb.AttributeValue) string {
	return aws.StringValue(item["pk"].S) + "|" + aws.StringValue(item["sk"].S)
}

func (m *mockDynamoDB) PutItemWithContext(_ aws.Context, input *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.items[itemKey(input.Item)] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDB) DeleteItemWithContext(_ aws.Context, input *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	delete(m.items, itemKey(input.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDynamoDB) QueryPagesWithContext(_ aws.Context, input *dynamodb.QueryInput, fn func(*dynamodb.QueryOutput, bool) bool, _ ...request.Option) error {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return m.err
	}
	pk := aws.StringValue(input.ExpressionAttributeValues[":pk"].S)
	var keys []string
	for k, item := range m.items {
		if aws.StringValue(item["pk"].S) == pk {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var items []map[string]*dynamodb.AttributeValue
	for _, k := range keys {
		items = append(items, m.items[k])
	}
	m.mu.Unlock()

	limit := len(items)
	if input.Limit != nil {
		limit = int(*input.Limit)
	}
	if limit == 0 {
		limit = 1
	}

	for start := 0; ; start += limit {
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := &dynamodb.QueryOutput{Count: aws.Int64(int64(end - start))}
		if aws.StringValue(input.Select) != dynamodb.SelectCount {
			page.Items = items[start:end]
		}
		m.mu.Lock()
		m.pages++
		m.mu.Unlock()
		last := end >= len(items)
		if !fn(page, last) || last {
			return nil
		}
	}
}
