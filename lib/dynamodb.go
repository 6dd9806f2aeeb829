package lib

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var dynamoDBClient *dynamodb.Client
var dynamoDBClientLock sync.Mutex

func DynamoDBClient() *dynamodb.Client {
	dynamoDBClientLock.Lock()
	defer dynamoDBClientLock.Unlock()
	if dynamoDBClient == nil {
		dynamoDBClient = dynamodb.NewFromConfig(*Session())
	}
	return dynamoDBClient
}

func dynamoDBTableAttrShortcut(s string) string {
	s2, ok := map[string]string{
		"read":   "ProvisionedThroughput.ReadCapacityUnits",
		"write":  "ProvisionedThroughput.WriteCapacityUnits",
		"stream": "StreamSpecification.StreamViewType",
		"kms":    "SSESpecification.KMSMasterKeyId",
	}[s]
	if ok {
		return s2
	}
	return s
}

// DynamoDBEnsureInput builds a create table input from keys like
// "id:s:hash" and attrs like "read=5" or "Tags.0.Key=owner".
func DynamoDBEnsureInput(name string, keys []string, attrs []string) (*dynamodb.CreateTableInput, error) {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: ddbtypes.BillingModePayPerRequest,
	}

	if len(keys) == 0 {
		err := fmt.Errorf("at least one key is required: %s", name)
		Logger.Println("error:", err)
		return nil, err
	}

	for _, key := range keys {
		attrName, attrType, keyType, err := SplitTwice(key, ":")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		input.KeySchema = append(input.KeySchema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(attrName),
			KeyType:       ddbtypes.KeyType(strings.ToUpper(keyType)),
		})
		input.AttributeDefinitions = append(input.AttributeDefinitions, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(attrName),
			AttributeType: ddbtypes.ScalarAttributeType(strings.ToUpper(attrType)),
		})
	}

	for _, line := range attrs {
		attr, value, err := splitOnce(line, "=")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		attr = dynamoDBTableAttrShortcut(attr)
		head, tail, err := splitOnce(attr, ".")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}

		switch head {

		case "BillingMode":
			err := fmt.Errorf("BillingMode is implied by the existence of provisioned throughput attrs: %s", line)
			Logger.Println("error:", err)
			return nil, err

		case "SSESpecification":
			switch tail {
			case "KMSMasterKeyId":
				input.SSESpecification = &ddbtypes.SSESpecification{
					Enabled:        aws.Bool(true),
					KMSMasterKeyId: aws.String(value),
					SSEType:        ddbtypes.SSETypeKms,
				}
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		case "ProvisionedThroughput":
			units, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
			if input.ProvisionedThroughput == nil {
				input.ProvisionedThroughput = &ddbtypes.ProvisionedThroughput{}
			}
			input.BillingMode = ddbtypes.BillingModeProvisioned
			switch tail {
			case "ReadCapacityUnits":
				input.ProvisionedThroughput.ReadCapacityUnits = aws.Int64(units)
			case "WriteCapacityUnits":
				input.ProvisionedThroughput.WriteCapacityUnits = aws.Int64(units)
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		case "StreamSpecification":
			switch tail {
			case "StreamViewType":
				input.StreamSpecification = &ddbtypes.StreamSpecification{
					StreamEnabled:  aws.Bool(true),
					StreamViewType: ddbtypes.StreamViewType(strings.ToUpper(value)),
				}
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		case "Tags":
			head, tail, err := splitOnce(tail, ".")
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
			i, err := strconv.Atoi(head)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
			if i < 0 {
				err := fmt.Errorf("attrs with indices must be in ascending order: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}
			switch len(input.Tags) {
			case i:
				input.Tags = append(input.Tags, ddbtypes.Tag{})
			case i + 1:
			default:
				err := fmt.Errorf("attrs with indices must be in ascending order: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}
			switch tail {
			case "Key":
				input.Tags[i].Key = aws.String(value)
			case "Value":
				input.Tags[i].Value = aws.String(value)
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		default:
			err := fmt.Errorf("unknown attr: %s", line)
			Logger.Println("error:", err)
			return nil, err
		}
	}

	if input.ProvisionedThroughput != nil {
		if input.ProvisionedThroughput.ReadCapacityUnits == nil || input.ProvisionedThroughput.WriteCapacityUnits == nil {
			err := fmt.Errorf("provisioned throughput needs both read and write: %s", name)
			Logger.Println("error:", err)
			return nil, err
		}
	}

	return input, nil
}

func dynamoDBKeySchemaEqual(a, b []ddbtypes.KeySchemaElement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if aws.ToString(a[i].AttributeName) != aws.ToString(b[i].AttributeName) || a[i].KeyType != b[i].KeyType {
			return false
		}
	}
	return true
}

// DynamoDBEnsure creates the table if it does not exist and waits for it to
// become active. An existing table must have the same key schema.
func DynamoDBEnsure(ctx context.Context, input *dynamodb.CreateTableInput, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBEnsure"}
		d.Start()
		defer d.End()
	}
	table := aws.ToString(input.TableName)
	out, err := DynamoDBClient().DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: input.TableName,
	})
	if err != nil {
		var notFound *ddbtypes.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			Logger.Println("error:", err)
			return err
		}
		if !preview {
			_, err := DynamoDBClient().CreateTable(ctx, input)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
		}
		Logger.Println(PreviewString(preview)+"dynamodb created table:", table)
		if preview {
			return nil
		}
		return DynamoDBWaitForActive(ctx, table)
	}
	if !dynamoDBKeySchemaEqual(out.Table.KeySchema, input.KeySchema) {
		err := fmt.Errorf("dynamodb table %s exists with a different key schema", table)
		Logger.Println("error:", err)
		return err
	}
	if preview {
		return nil
	}
	return DynamoDBWaitForActive(ctx, table)
}

func DynamoDBWaitForActive(ctx context.Context, table string) error {
	err := retry.Do(
		func() error {
			out, err := DynamoDBClient().DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(table),
			})
			if err != nil {
				return err
			}
			if out.Table.TableStatus != ddbtypes.TableStatusActive {
				return fmt.Errorf("dynamodb table %s is %s", table, out.Table.TableStatus)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(120),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	return nil
}

// DynamoDBEnsureKinesisDestination streams item level changes of the table
// into the kinesis stream.
func DynamoDBEnsureKinesisDestination(ctx context.Context, table, streamArn string, preview bool) error {
	out, err := DynamoDBClient().DescribeKinesisStreamingDestination(ctx, &dynamodb.DescribeKinesisStreamingDestinationInput{
		TableName: aws.String(table),
	})
	if err != nil {
		var notFound *ddbtypes.ResourceNotFoundException
		if !preview || !errors.As(err, &notFound) {
			Logger.Println("error:", err)
			return err
		}
	} else {
		for _, dest := range out.KinesisDataStreamDestinations {
			if aws.ToString(dest.StreamArn) != streamArn {
				continue
			}
			switch dest.DestinationStatus {
			case ddbtypes.DestinationStatusActive, ddbtypes.DestinationStatusEnabling:
				return nil
			}
		}
	}
	if !preview {
		_, err := DynamoDBClient().EnableKinesisStreamingDestination(ctx, &dynamodb.EnableKinesisStreamingDestinationInput{
			TableName: aws.String(table),
			StreamArn: aws.String(streamArn),
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"dynamodb enabled kinesis destination:", table, streamArn)
	return nil
}

// DynamoDBScan calls fn for every item in the table, stopping after limit
// items when limit is positive.
func DynamoDBScan(ctx context.Context, api dynamodb.ScanAPIClient, table string, limit int, fn func(map[string]ddbtypes.AttributeValue) error) error {
	count := 0
	paginator := dynamodb.NewScanPaginator(api, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Limit:     aws.Int32(1000),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		for _, item := range out.Items {
			if limit > 0 && count >= limit {
				return nil
			}
			count++
			err := fn(item)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
