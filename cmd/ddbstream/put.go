package ddbstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/ddbstream/lib"
	"github.com/nathants/ddbstream/record"
)

func init() {
	lib.Commands["ddbstream-put"] = ddbstreamPut
	lib.Args["ddbstream-put"] = ddbstreamPutArgs{}
}

type ddbstreamPutArgs struct {
	Table string `arg:"positional,required"`
}

func (ddbstreamPutArgs) Description() string {
	return `

put one random record, the same write the put-item lambda makes

>> ddbstream ddbstream-put test-table

`
}

func ddbstreamPut() {
	var args ddbstreamPutArgs
	arg.MustParse(&args)
	ctx := context.Background()
	r, err := record.PutNew(ctx, lib.DynamoDBClient(), args.Table)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	bytes, err := json.Marshal(r)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Println(string(bytes))
}
