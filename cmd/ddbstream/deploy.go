package ddbstream

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nathants/ddbstream/lib"
)

func init() {
	lib.Commands["ddbstream-deploy"] = ddbstreamDeploy
	lib.Args["ddbstream-deploy"] = ddbstreamDeployArgs{}
}

type ddbstreamDeployArgs struct {
	Table   string `arg:"positional,required"`
	Name    string `arg:"-n,--name" default:"ddbstream-put-item" help:"function and role name"`
	Dir     string `arg:"-d,--dir" default:"lambda/putitem" help:"go main package of the handler"`
	Preview bool   `arg:"-p,--preview"`
}

func (ddbstreamDeployArgs) Description() string {
	return `
build the put item handler and deploy it with TABLE set and write access to the table

example:
 - ddbstream ddbstream-deploy test-table

the table must already exist, see ddbstream-ensure
`
}

func ddbstreamDeploy() {
	var args ddbstreamDeployArgs
	arg.MustParse(&args)
	ctx := context.Background()
	out, err := lib.DynamoDBClient().DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(args.Table),
	})
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	tableArn := aws.ToString(out.Table.TableArn)
	roleArn, err := lib.IamEnsureRole(ctx, lib.IamClient(), args.Name, "lambda", args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	allows := []string{
		"dynamodb:PutItem " + tableArn,
		"logs:CreateLogGroup *",
		"logs:CreateLogStream *",
		"logs:PutLogEvents *",
	}
	err = lib.IamEnsureRoleAllows(ctx, lib.IamClient(), args.Name, allows, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	var zip []byte
	if !args.Preview {
		zip, err = lib.LambdaZipGo(ctx, args.Dir)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
	}
	lib.Logger.Println(lib.PreviewString(args.Preview)+"zipped go binary:", args.Dir)
	arn, err := lib.LambdaEnsure(ctx, lib.LambdaClient(), &lib.LambdaFunction{
		Name:    args.Name,
		RoleArn: roleArn,
		Env:     map[string]string{"TABLE": args.Table},
		Zip:     zip,
	}, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	if arn != "" {
		lib.Logger.Println("function:", arn)
	}
}
