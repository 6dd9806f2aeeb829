package ddbstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alexflint/go-arg"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dustin/go-humanize"
	"github.com/nathants/ddbstream/lib"
	"github.com/nathants/ddbstream/record"
)

func init() {
	lib.Commands["ddbstream-scan"] = ddbstreamScan
	lib.Args["ddbstream-scan"] = ddbstreamScanArgs{}
}

type ddbstreamScanArgs struct {
	Table string `arg:"positional,required"`
	Limit int    `arg:"-l,--limit" default:"0"`
}

func (ddbstreamScanArgs) Description() string {
	return "\nscan the table and print each record as json\n"
}

func ddbstreamScan() {
	var args ddbstreamScanArgs
	arg.MustParse(&args)
	ctx := context.Background()
	var count int64
	err := lib.DynamoDBScan(ctx, lib.DynamoDBClient(), args.Table, args.Limit, func(item map[string]ddbtypes.AttributeValue) error {
		r, err := record.FromItem(item)
		if err != nil {
			return err
		}
		bytes, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Println(string(bytes))
		count++
		return nil
	})
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	lib.Logger.Println("scanned", humanize.Comma(count), "records from", args.Table)
}
