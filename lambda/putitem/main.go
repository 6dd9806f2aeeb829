package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/nathants/ddbstream/lib"
	"github.com/nathants/ddbstream/record"
)

func putItem(ctx context.Context, api record.PutItemAPI, table string) error {
	r, err := record.PutNew(ctx, api, table)
	if err != nil {
		return err
	}
	fmt.Printf("put: %s %d\n", r.ID, r.Value)
	return nil
}

func handleRequest(ctx context.Context, _ json.RawMessage) error {
	table := os.Getenv("TABLE")
	if table == "" {
		return fmt.Errorf("env TABLE: %w", record.ErrTableNotConfigured)
	}
	return putItem(ctx, lib.DynamoDBClient(), table)
}

func main() {
	lambda.Start(handleRequest)
}
