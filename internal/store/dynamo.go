package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design: events partition by
// local day so a day's timeline is one Query, and sort by timestamp so
// results come back in capture order.
const (
	pkPrefix = "DAY#"
	skPrefix = "EVENT#"

	dayFormat = "2006-01-02"
)

// DynamoStore implements ActivityStore using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ ActivityStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// eventPK returns the partition key for an event timestamp.
func eventPK(ts time.Time) string {
	return pkPrefix + ts.Format(dayFormat)
}

// eventSK returns the sort key for an event. The RFC 3339 timestamp prefix
// makes lexicographic order equal timestamp order; the id suffix breaks ties.
func eventSK(ev *ActivityEvent) string {
	return skPrefix + ev.Timestamp.UTC().Format(time.RFC3339) + "#" + ev.ID
}

// SaveEvent marshals the event and writes it with PK and SK attributes.
func (s *DynamoStore) SaveEvent(ctx context.Context, ev *ActivityEvent) error {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return &WriteError{EventID: ev.ID, Err: fmt.Errorf("marshal: %w", err)}
	}

	item["PK"] = &types.AttributeValueMemberS{Value: eventPK(ev.Timestamp)}
	item["SK"] = &types.AttributeValueMemberS{Value: eventSK(ev)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return &WriteError{EventID: ev.ID, Err: err}
	}

	log.Debug().
		Str("eventId", ev.ID).
		Str("label", ev.Label).
		Bool("needsReview", ev.NeedsReview).
		Msg("Activity event persisted")
	return nil
}

// ListDay queries all events for one local day, oldest first.
func (s *DynamoStore) ListDay(ctx context.Context, day string) ([]*ActivityEvent, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkPrefix + day},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query day %s: %w", day, err)
	}

	events := make([]*ActivityEvent, 0, len(out.Items))
	for _, item := range out.Items {
		var ev ActivityEvent
		if err := attributevalue.UnmarshalMap(item, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, nil
}
