package lib

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/aws/aws-lambda-go/events"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBChange is an item level change record as dynamodb writes it to a
// kinesis data stream destination.
type DynamoDBChange struct {
	AwsRegion   string `json:"awsRegion"`
	EventID     string `json:"eventID"`
	EventName   string `json:"eventName"`
	EventSource string `json:"eventSource"`
	TableName   string `json:"tableName"`
	Dynamodb    struct {
		Keys     map[string]events.DynamoDBAttributeValue `json:"Keys"`
		NewImage map[string]events.DynamoDBAttributeValue `json:"NewImage,omitempty"`
		OldImage map[string]events.DynamoDBAttributeValue `json:"OldImage,omitempty"`
	} `json:"dynamodb"`
}

func DecodeDynamoDBChange(data []byte) (*DynamoDBChange, error) {
	change := &DynamoDBChange{}
	err := json.Unmarshal(data, change)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	if len(change.Dynamodb.Keys) == 0 {
		err := fmt.Errorf("dynamodb change has no keys: %s", change.EventID)
		Logger.Println("error:", err)
		return nil, err
	}
	return change, nil
}

// KeyString returns the named string key of the changed item.
func (c *DynamoDBChange) KeyString(name string) (string, error) {
	key, ok := c.Dynamodb.Keys[name]
	if !ok {
		return "", fmt.Errorf("dynamodb change missing key: %s", name)
	}
	if key.DataType() != events.DataTypeString {
		return "", fmt.Errorf("dynamodb change key is not a string: %s", name)
	}
	return key.String(), nil
}

// Key is the changed item's primary key as sdk attribute values.
func (c *DynamoDBChange) Key() (map[string]ddbtypes.AttributeValue, error) {
	return ToAttributeValueMap(c.Dynamodb.Keys)
}

// NewItem is the item as it was after the change, or nil when the stream
// does not carry new images or the item was removed.
func (c *DynamoDBChange) NewItem() (map[string]ddbtypes.AttributeValue, error) {
	if len(c.Dynamodb.NewImage) == 0 {
		return nil, nil
	}
	return ToAttributeValueMap(c.Dynamodb.NewImage)
}

func ToAttributeValueMap(from map[string]events.DynamoDBAttributeValue) (map[string]ddbtypes.AttributeValue, error) {
	to := make(map[string]ddbtypes.AttributeValue, len(from))
	for field, av := range from {
		value, err := ToAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		to[field] = value
	}
	return to, nil
}

// ToAttributeValue converts a change record attribute into the sdk
// attribute value union, recursing into lists and maps.
func ToAttributeValue(av events.DynamoDBAttributeValue) (ddbtypes.AttributeValue, error) {
	switch av.DataType() {
	case events.DataTypeString:
		return &ddbtypes.AttributeValueMemberS{Value: av.String()}, nil
	case events.DataTypeNumber:
		return &ddbtypes.AttributeValueMemberN{Value: av.Number()}, nil
	case events.DataTypeBinary:
		return &ddbtypes.AttributeValueMemberB{Value: slices.Clone(av.Binary())}, nil
	case events.DataTypeBoolean:
		return &ddbtypes.AttributeValueMemberBOOL{Value: av.Boolean()}, nil
	case events.DataTypeNull:
		return &ddbtypes.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeStringSet:
		return &ddbtypes.AttributeValueMemberSS{Value: slices.Clone(av.StringSet())}, nil
	case events.DataTypeNumberSet:
		return &ddbtypes.AttributeValueMemberNS{Value: slices.Clone(av.NumberSet())}, nil
	case events.DataTypeBinarySet:
		set := make([][]byte, 0, len(av.BinarySet()))
		for _, b := range av.BinarySet() {
			set = append(set, slices.Clone(b))
		}
		return &ddbtypes.AttributeValueMemberBS{Value: set}, nil
	case events.DataTypeList:
		list := make([]ddbtypes.AttributeValue, 0, len(av.List()))
		for i, elem := range av.List() {
			value, err := ToAttributeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list = append(list, value)
		}
		return &ddbtypes.AttributeValueMemberL{Value: list}, nil
	case events.DataTypeMap:
		m, err := ToAttributeValueMap(av.Map())
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberM{Value: m}, nil
	}
	return nil, fmt.Errorf("unsupported change attribute type: %d", av.DataType())
}
