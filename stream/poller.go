package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	kinesistypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/nathants/ddbstream/lib"
	"github.com/nathants/ddbstream/record"
	"golang.org/x/sync/errgroup"
)

const PollInterval = time.Second

var ErrItemNotFound = errors.New("item not found")

type KinesisAPI interface {
	lib.KinesisListShardsAPI
	GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

type QueryAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type Poller struct {
	Kinesis  KinesisAPI
	DynamoDB QueryAPI
	Stream   string
	Table    string
	Hub      *Hub
	Interval time.Duration
}

// Run starts reading every shard at its latest position and broadcasts the
// changed item for each record until ctx is done or a call fails.
func (p *Poller) Run(ctx context.Context) error {
	shards, err := lib.KinesisListShards(ctx, p.Kinesis, p.Stream)
	if err != nil {
		return fmt.Errorf("failed to get shards list: %w", err)
	}
	iterators, err := p.iterators(ctx, shards)
	if err != nil {
		return err
	}
	lib.Logger.Println("polling", len(iterators), "shards of", p.Stream)
	interval := p.Interval
	if interval == 0 {
		interval = PollInterval
	}
	for {
		iterators, err = p.poll(ctx, iterators)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (p *Poller) iterators(ctx context.Context, shards []kinesistypes.Shard) ([]string, error) {
	iterators := make([]string, len(shards))
	g, ctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			out, err := p.Kinesis.GetShardIterator(ctx, &kinesis.GetShardIteratorInput{
				StreamName:        aws.String(p.Stream),
				ShardId:           shard.ShardId,
				ShardIteratorType: kinesistypes.ShardIteratorTypeLatest,
			})
			if err != nil {
				return fmt.Errorf("failed to get shard iterator: %w", err)
			}
			iterators[i] = aws.ToString(out.ShardIterator)
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		lib.Logger.Println("error:", err)
		return nil, err
	}
	return iterators, nil
}

// poll reads one batch from every shard and returns the iterators for the
// next round. Closed shards have no next iterator and are dropped.
func (p *Poller) poll(ctx context.Context, iterators []string) ([]string, error) {
	var next []string
	for _, iterator := range iterators {
		out, err := p.Kinesis.GetRecords(ctx, &kinesis.GetRecordsInput{
			ShardIterator: aws.String(iterator),
		})
		if err != nil {
			lib.Logger.Println("error:", err)
			return nil, fmt.Errorf("failed to get records: %w", err)
		}
		if out.NextShardIterator != nil {
			next = append(next, *out.NextShardIterator)
		}
		for _, r := range out.Records {
			err := p.handle(ctx, r.Data)
			if err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

func (p *Poller) handle(ctx context.Context, data []byte) error {
	change, err := lib.DecodeDynamoDBChange(data)
	if err != nil {
		return err
	}
	id, err := change.KeyString("id")
	if err != nil {
		lib.Logger.Println("error:", err)
		return err
	}
	item, err := p.item(ctx, id, change)
	if err != nil {
		return err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return p.Hub.Broadcast(ctx, Message{Type: TypeBroadcast, Data: string(body)})
}

// item reads the changed item from the change's new image when the stream
// carries one, and from the table otherwise.
func (p *Poller) item(ctx context.Context, id string, change *lib.DynamoDBChange) (*record.Item, error) {
	image, err := change.NewItem()
	if err != nil {
		lib.Logger.Println("error:", err)
		return nil, err
	}
	if image != nil {
		return record.FromItem(image)
	}
	key, err := change.Key()
	if err != nil {
		lib.Logger.Println("error:", err)
		return nil, err
	}
	return p.query(ctx, id, key["id"])
}

func (p *Poller) query(ctx context.Context, id string, key ddbtypes.AttributeValue) (*record.Item, error) {
	out, err := p.DynamoDB.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(p.Table),
		KeyConditionExpression:   aws.String("#id = :id"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":id": key,
		},
		Select: ddbtypes.SelectAllAttributes,
	})
	if err != nil {
		lib.Logger.Println("error:", err)
		return nil, fmt.Errorf("query error: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return record.FromItem(out.Items[len(out.Items)-1])
}
