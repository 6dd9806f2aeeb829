package ddbstream

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/nathants/ddbstream/lib"
	"github.com/nathants/ddbstream/stream"
)

func init() {
	lib.Commands["ddbstream-serve"] = ddbstreamServe
	lib.Args["ddbstream-serve"] = ddbstreamServeArgs{}
}

type ddbstreamServeArgs struct {
	Table  string `arg:"positional,required,env:DYNAMODB_TABLE"`
	Stream string `arg:"positional,required,env:KINESIS_STREAM"`
	Addr   string `arg:"-a,--addr" default:"0.0.0.0:50051"`
}

func (ddbstreamServeArgs) Description() string {
	return `

poll the table's kinesis stream and broadcast every changed item to subscribers

>> ddbstream ddbstream-serve test-table test-stream

subscribers connect with:

>> ddbstream ddbstream-subscribe localhost:50051

or any grpc client of ddbstream.DdbStream/Subscribe

>> grpcurl -plaintext localhost:50051 grpc.health.v1.Health/Check

`
}

func ddbstreamServe() {
	var args ddbstreamServeArgs
	arg.MustParse(&args)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	hub := stream.NewHub()
	poller := &stream.Poller{
		Kinesis:  lib.KinesisClient(),
		DynamoDB: lib.DynamoDBClient(),
		Stream:   args.Stream,
		Table:    args.Table,
		Hub:      hub,
	}
	ln, err := stream.Listen(args.Addr)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	err = stream.Serve(ctx, ln, hub, poller)
	if err != nil && !errors.Is(err, context.Canceled) {
		lib.Logger.Fatal("error: ", err)
	}
}
