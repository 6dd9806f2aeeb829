package lib

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	kinesistypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/smithy-go"
)

var kinesisClient *kinesis.Client
var kinesisClientLock sync.Mutex

func KinesisClient() *kinesis.Client {
	kinesisClientLock.Lock()
	defer kinesisClientLock.Unlock()
	if kinesisClient == nil {
		kinesisClient = kinesis.NewFromConfig(*Session())
	}
	return kinesisClient
}

// KinesisEnsure creates an on-demand stream if it does not exist, waits for
// it to become active, and returns its arn. In preview mode the arn of a
// missing stream is empty.
func KinesisEnsure(ctx context.Context, name string, preview bool) (string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "KinesisEnsure"}
		d.Start()
		defer d.End()
	}
	out, err := KinesisClient().DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(name),
	})
	if err == nil {
		if preview {
			return aws.ToString(out.StreamDescriptionSummary.StreamARN), nil
		}
		return KinesisWaitForActive(ctx, name)
	}
	var notFound *kinesistypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		Logger.Println("error:", err)
		return "", err
	}
	if !preview {
		_, err := KinesisClient().CreateStream(ctx, &kinesis.CreateStreamInput{
			StreamName: aws.String(name),
			StreamModeDetails: &kinesistypes.StreamModeDetails{
				StreamMode: kinesistypes.StreamModeOnDemand,
			},
		})
		if err != nil {
			var apiErr smithy.APIError
			if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ResourceInUseException" {
				Logger.Println("error:", err)
				return "", err
			}
		}
	}
	Logger.Println(PreviewString(preview)+"kinesis created stream:", name)
	if preview {
		return "", nil
	}
	return KinesisWaitForActive(ctx, name)
}

func KinesisWaitForActive(ctx context.Context, name string) (string, error) {
	var arn string
	err := retry.Do(
		func() error {
			out, err := KinesisClient().DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
				StreamName: aws.String(name),
			})
			if err != nil {
				return err
			}
			summary := out.StreamDescriptionSummary
			if summary.StreamStatus != kinesistypes.StreamStatusActive {
				return fmt.Errorf("kinesis stream %s is %s", name, summary.StreamStatus)
			}
			arn = aws.ToString(summary.StreamARN)
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
		return "", err
	}
	return arn, nil
}

type KinesisListShardsAPI interface {
	ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
}

func KinesisListShards(ctx context.Context, api KinesisListShardsAPI, stream string) ([]kinesistypes.Shard, error) {
	var shards []kinesistypes.Shard
	input := &kinesis.ListShardsInput{
		StreamName: aws.String(stream),
	}
	for {
		out, err := api.ListShards(ctx, input)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		shards = append(shards, out.Shards...)
		if out.NextToken == nil {
			break
		}
		// stream name and next token are mutually exclusive
		input = &kinesis.ListShardsInput{
			NextToken: out.NextToken,
		}
	}
	return shards, nil
}
