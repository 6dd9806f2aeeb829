package stream

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Subscribe opens a subscribe stream to the server at target and calls fn
// for each message until the server ends the stream, ctx is done, or fn
// fails. Plaintext transport is used unless opts say otherwise.
func Subscribe(ctx context.Context, target string, fn func(Message) error, opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod)
	if err != nil {
		return subscribeErr(ctx, err)
	}
	err = stream.SendMsg(newSubscribeRequest())
	if err != nil {
		return subscribeErr(ctx, err)
	}
	err = stream.CloseSend()
	if err != nil {
		return subscribeErr(ctx, err)
	}
	for {
		resp := newSubscribeResponse()
		err := stream.RecvMsg(resp)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return subscribeErr(ctx, err)
		}
		err = fn(messageFromProto(resp))
		if err != nil {
			return err
		}
	}
}

func subscribeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
