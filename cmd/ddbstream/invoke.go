package ddbstream

import (
	"context"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/nathants/ddbstream/lib"
)

func init() {
	lib.Commands["ddbstream-invoke"] = ddbstreamInvoke
	lib.Args["ddbstream-invoke"] = ddbstreamInvokeArgs{}
}

type ddbstreamInvokeArgs struct {
	Name    string `arg:"positional,required"`
	Count   int    `arg:"-n,--count" default:"1"`
	Verbose bool   `arg:"-v,--verbose"`
}

func (ddbstreamInvokeArgs) Description() string {
	return `

invoke the deployed put-item lambda, once per record

>> ddbstream ddbstream-invoke put-item -n 10

`
}

func ddbstreamInvoke() {
	var args ddbstreamInvokeArgs
	arg.MustParse(&args)
	ctx := context.Background()
	for i := 0; i < args.Count; i++ {
		result, err := lib.LambdaInvoke(ctx, lib.LambdaClient(), args.Name, []byte("{}"))
		if result != nil && (args.Verbose || err != nil) {
			fmt.Fprintln(os.Stderr, result.Log)
		}
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
	}
	lib.Logger.Println("invoked", args.Name, args.Count, "times")
}
