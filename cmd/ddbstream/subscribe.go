package ddbstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/alexflint/go-arg"
	"github.com/mattn/go-isatty"
	"github.com/nathants/ddbstream/lib"
	"github.com/nathants/ddbstream/stream"
)

func init() {
	lib.Commands["ddbstream-subscribe"] = ddbstreamSubscribe
	lib.Args["ddbstream-subscribe"] = ddbstreamSubscribeArgs{}
}

type ddbstreamSubscribeArgs struct {
	Addr  string `arg:"positional,required"`
	Pings bool   `arg:"-p,--pings" help:"print ping messages too"`
}

func (ddbstreamSubscribeArgs) Description() string {
	return `

print messages broadcast by a ddbstream server

>> ddbstream ddbstream-subscribe localhost:50051

`
}

func ddbstreamSubscribe() {
	var args ddbstreamSubscribeArgs
	arg.MustParse(&args)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	tty := isatty.IsTerminal(os.Stdout.Fd())
	err := stream.Subscribe(ctx, args.Addr, func(msg stream.Message) error {
		if msg.Type == stream.TypePing && !args.Pings {
			return nil
		}
		var bytes []byte
		var err error
		if tty {
			bytes, err = json.MarshalIndent(msg, "", "  ")
		} else {
			bytes, err = json.Marshal(msg)
		}
		if err != nil {
			return err
		}
		fmt.Println(string(bytes))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		lib.Logger.Fatal("error: ", err)
	}
}
