package ddbstream

import (
	"os"
	"testing"

	"github.com/alexflint/go-arg"
)

func parseServeArgs(t *testing.T, argv []string) (ddbstreamServeArgs, error) {
	t.Helper()
	var args ddbstreamServeArgs
	p, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		t.Fatal(err)
	}
	return args, p.Parse(argv)
}

func TestServeArgsFromEnv(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "env-table")
	t.Setenv("KINESIS_STREAM", "env-stream")
	args, err := parseServeArgs(t, []string{})
	if err != nil {
		t.Fatal(err)
	}
	if args.Table != "env-table" || args.Stream != "env-stream" {
		t.Errorf("\ngot:\n%s %s\nwant:\n%s %s\n", args.Table, args.Stream, "env-table", "env-stream")
	}
	if args.Addr != "0.0.0.0:50051" {
		t.Errorf("\ngot:\n%s\nwant:\n%s\n", args.Addr, "0.0.0.0:50051")
	}
}

func TestServeArgsPositionalWins(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "env-table")
	t.Setenv("KINESIS_STREAM", "env-stream")
	args, err := parseServeArgs(t, []string{"arg-table", "arg-stream"})
	if err != nil {
		t.Fatal(err)
	}
	if args.Table != "arg-table" || args.Stream != "arg-stream" {
		t.Errorf("\ngot:\n%s %s\nwant:\n%s %s\n", args.Table, args.Stream, "arg-table", "arg-stream")
	}
}

func TestServeArgsMissing(t *testing.T) {
	for _, name := range []string{"DYNAMODB_TABLE", "KINESIS_STREAM"} {
		t.Setenv(name, "")
		err := os.Unsetenv(name)
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := parseServeArgs(t, []string{})
	if err == nil {
		t.Errorf("expected error without table and stream")
	}
}
