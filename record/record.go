// Package record generates the random rows written by the put-item lambda
// and decodes them when they are read back for subscribers.
package record

import (
	"context"
	"errors"
	"math/rand"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gofrs/uuid"
)

const (
	MinValue = 0
	MaxValue = 100
)

var ErrTableNotConfigured = errors.New("table not configured")

type Record struct {
	ID    string `json:"id" dynamodbav:"id"`
	Value int    `json:"value" dynamodbav:"value"`
}

// New returns a record with a fresh v4 uuid and a value drawn uniformly
// from [MinValue, MaxValue].
func New() (*Record, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:    id.String(),
		Value: MinValue + rand.Intn(MaxValue-MinValue+1),
	}, nil
}

func (r *Record) Item() (map[string]ddbtypes.AttributeValue, error) {
	return attributevalue.MarshalMap(r)
}

type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

func Put(ctx context.Context, api PutItemAPI, table string, r *Record) error {
	if table == "" {
		return ErrTableNotConfigured
	}
	item, err := r.Item()
	if err != nil {
		return err
	}
	_, err = api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	return err
}

// PutNew generates one record and writes it to table.
func PutNew(ctx context.Context, api PutItemAPI, table string) (*Record, error) {
	if table == "" {
		return nil, ErrTableNotConfigured
	}
	r, err := New()
	if err != nil {
		return nil, err
	}
	err = Put(ctx, api, table, r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Item is a row as read back from the table. Value is nil when the
// attribute is missing or is not a number.
type Item struct {
	ID    string   `json:"id"`
	Value *float64 `json:"value"`
}

var ErrMissingID = errors.New("item has no string id")

func FromItem(item map[string]ddbtypes.AttributeValue) (*Item, error) {
	id, ok := item["id"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return nil, ErrMissingID
	}
	out := &Item{ID: id.Value}
	if n, ok := item["value"].(*ddbtypes.AttributeValueMemberN); ok {
		value, err := strconv.ParseFloat(n.Value, 64)
		if err == nil {
			out.Value = &value
		}
	}
	return out, nil
}
