package ddbstream

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/nathants/ddbstream/lib"
)

func init() {
	lib.Commands["ddbstream-ensure"] = ddbstreamEnsure
	lib.Args["ddbstream-ensure"] = ddbstreamEnsureArgs{}
}

type ddbstreamEnsureArgs struct {
	Table   string   `arg:"positional,required"`
	Stream  string   `arg:"positional,required"`
	Attrs   []string `arg:"positional"`
	Preview bool     `arg:"-p,--preview"`
}

func (ddbstreamEnsureArgs) Description() string {
	return `
ensure the table, its kinesis stream, and the streaming destination between them

example:
 - ddbstream ddbstream-ensure test-table test-stream Tags.0.Key=owner Tags.0.Value=me

the table is keyed on id:s:hash

optional attrs:
 - SSESpecification.KMSMasterKeyId=VALUE
 - ProvisionedThroughput.ReadCapacityUnits=VALUE
 - ProvisionedThroughput.WriteCapacityUnits=VALUE
 - StreamSpecification.StreamViewType=VALUE
 - Tags.INTEGER.Key=VALUE
 - Tags.INTEGER.Value=VALUE

shortcuts:
 - read=VALUE
 - write=VALUE
 - stream=VALUE
 - kms=VALUE
`
}

func ddbstreamEnsure() {
	var args ddbstreamEnsureArgs
	arg.MustParse(&args)
	ctx := context.Background()
	streamArn, err := lib.KinesisEnsure(ctx, args.Stream, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	input, err := lib.DynamoDBEnsureInput(args.Table, []string{"id:s:hash"}, args.Attrs)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	err = lib.DynamoDBEnsure(ctx, input, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	err = lib.DynamoDBEnsureKinesisDestination(ctx, args.Table, streamArn, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
