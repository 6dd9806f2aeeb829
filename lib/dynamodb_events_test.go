package lib

import (
	"reflect"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const kinesisInsert = `{
  "awsRegion": "us-west-2",
  "eventID": "2f3b1c4e-1b3c-4d5e-8f9a-0b1c2d3e4f5a",
  "eventName": "INSERT",
  "userIdentity": null,
  "recordFormat": "application/json",
  "tableName": "ddbstream-table",
  "dynamodb": {
    "ApproximateCreationDateTime": 1697700000000,
    "Keys": {"id": {"S": "6f9619ff-8b86-d011-b42d-00c04fc964ff"}},
    "NewImage": {
      "id": {"S": "6f9619ff-8b86-d011-b42d-00c04fc964ff"},
      "value": {"N": "42"}
    },
    "SizeBytes": 52
  },
  "eventSource": "aws:dynamodb"
}`

func TestDecodeDynamoDBChange(t *testing.T) {
	change, err := DecodeDynamoDBChange([]byte(kinesisInsert))
	if err != nil {
		t.Fatal(err)
	}
	if change.EventName != "INSERT" {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", change.EventName, "INSERT")
	}
	if change.TableName != "ddbstream-table" {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", change.TableName, "ddbstream-table")
	}
	id, err := change.KeyString("id")
	if err != nil {
		t.Fatal(err)
	}
	if id != "6f9619ff-8b86-d011-b42d-00c04fc964ff" {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", id, "6f9619ff-8b86-d011-b42d-00c04fc964ff")
	}
	if change.Dynamodb.NewImage["value"].Number() != "42" {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", change.Dynamodb.NewImage["value"].Number(), "42")
	}
	key, err := change.Key()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]ddbtypes.AttributeValue{
		"id": &ddbtypes.AttributeValueMemberS{Value: "6f9619ff-8b86-d011-b42d-00c04fc964ff"},
	}
	if !reflect.DeepEqual(key, want) {
		t.Errorf("\ngot:\n%#v\nwant:\n%#v\n", key, want)
	}
}

func TestDecodeDynamoDBChangeErrors(t *testing.T) {
	tests := []string{
		`not json`,
		`{"eventName": "INSERT", "dynamodb": {}}`,
		`{"eventName": "INSERT", "dynamodb": {"Keys": {"id": {"X": "y"}}}}`,
	}
	for _, test := range tests {
		_, err := DecodeDynamoDBChange([]byte(test))
		if err == nil {
			t.Errorf("expected error for: %s", test)
		}
	}
}

func TestDynamoDBChangeKeyString(t *testing.T) {
	change, err := DecodeDynamoDBChange([]byte(`{"dynamodb": {"Keys": {"n": {"N": "1"}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = change.KeyString("id")
	if err == nil {
		t.Errorf("expected error for missing key")
	}
	_, err = change.KeyString("n")
	if err == nil {
		t.Errorf("expected error for number key")
	}
}

func TestToAttributeValue(t *testing.T) {
	type test struct {
		input events.DynamoDBAttributeValue
		want  ddbtypes.AttributeValue
	}
	tests := []test{
		{events.NewStringAttribute("a"), &ddbtypes.AttributeValueMemberS{Value: "a"}},
		{events.NewNumberAttribute("7"), &ddbtypes.AttributeValueMemberN{Value: "7"}},
		{events.NewBooleanAttribute(true), &ddbtypes.AttributeValueMemberBOOL{Value: true}},
		{events.NewNullAttribute(), &ddbtypes.AttributeValueMemberNULL{Value: true}},
		{events.NewBinaryAttribute([]byte("b")), &ddbtypes.AttributeValueMemberB{Value: []byte("b")}},
		{events.NewStringSetAttribute([]string{"a", "b"}), &ddbtypes.AttributeValueMemberSS{Value: []string{"a", "b"}}},
		{events.NewNumberSetAttribute([]string{"1", "2"}), &ddbtypes.AttributeValueMemberNS{Value: []string{"1", "2"}}},
		{
			events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("x")}),
			&ddbtypes.AttributeValueMemberL{Value: []ddbtypes.AttributeValue{&ddbtypes.AttributeValueMemberS{Value: "x"}}},
		},
		{
			events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{"k": events.NewNumberAttribute("1")}),
			&ddbtypes.AttributeValueMemberM{Value: map[string]ddbtypes.AttributeValue{"k": &ddbtypes.AttributeValueMemberN{Value: "1"}}},
		},
	}
	for _, test := range tests {
		got, err := ToAttributeValue(test.input)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			continue
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("\ngot:\n%#v\nwant:\n%#v\n", got, test.want)
		}
	}
}

func TestDynamoDBChangeNewItem(t *testing.T) {
	change, err := DecodeDynamoDBChange([]byte(kinesisInsert))
	if err != nil {
		t.Fatal(err)
	}
	item, err := change.NewItem()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]ddbtypes.AttributeValue{
		"id":    &ddbtypes.AttributeValueMemberS{Value: "6f9619ff-8b86-d011-b42d-00c04fc964ff"},
		"value": &ddbtypes.AttributeValueMemberN{Value: "42"},
	}
	if !reflect.DeepEqual(item, want) {
		t.Errorf("\ngot:\n%#v\nwant:\n%#v\n", item, want)
	}
	change, err = DecodeDynamoDBChange([]byte(`{"eventName": "REMOVE", "dynamodb": {"Keys": {"id": {"S": "a"}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	item, err = change.NewItem()
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Errorf("\ngot:\n%#v\nwant:\n%#v\n", item, nil)
	}
}
