package main

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nathants/ddbstream/record"
)

type fakeTable struct {
	rows map[string]map[string]map[string]ddbtypes.AttributeValue
	err  error
}

func (f *fakeTable) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	table := aws.ToString(input.TableName)
	if f.rows[table] == nil {
		f.rows[table] = map[string]map[string]ddbtypes.AttributeValue{}
	}
	id := input.Item["id"].(*ddbtypes.AttributeValueMemberS).Value
	f.rows[table][id] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestPutItem(t *testing.T) {
	db := &fakeTable{rows: map[string]map[string]map[string]ddbtypes.AttributeValue{}}
	err := putItem(context.Background(), db, "T")
	if err != nil {
		t.Fatal(err)
	}
	if len(db.rows) != 1 || len(db.rows["T"]) != 1 {
		t.Fatalf("\ngot:\n%v\nwant:\n%s\n", db.rows, "one row in T")
	}
	for id, row := range db.rows["T"] {
		if id == "" {
			t.Errorf("empty id")
		}
		value, err := strconv.Atoi(row["value"].(*ddbtypes.AttributeValueMemberN).Value)
		if err != nil {
			t.Fatal(err)
		}
		if value < 0 || value > 100 {
			t.Errorf("value out of range: %d", value)
		}
	}
}

func TestPutItemManyInvocations(t *testing.T) {
	db := &fakeTable{rows: map[string]map[string]map[string]ddbtypes.AttributeValue{}}
	for i := 0; i < 50; i++ {
		err := putItem(context.Background(), db, "T")
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(db.rows["T"]) != 50 {
		t.Errorf("\ngot:\n%d\nwant:\n%d\n", len(db.rows["T"]), 50)
	}
}

func TestPutItemWriteRejected(t *testing.T) {
	rejected := errors.New("AccessDeniedException")
	db := &fakeTable{rows: map[string]map[string]map[string]ddbtypes.AttributeValue{}, err: rejected}
	err := putItem(context.Background(), db, "T")
	if !errors.Is(err, rejected) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", err, rejected)
	}
}

func TestHandleRequestMissingTable(t *testing.T) {
	t.Setenv("TABLE", "")
	err := handleRequest(context.Background(), json.RawMessage(`{"source":"aws.events"}`))
	if !errors.Is(err, record.ErrTableNotConfigured) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", err, record.ErrTableNotConfigured)
	}
}
