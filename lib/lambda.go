package lib

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

var lambdaClient *lambda.Client
var lambdaClientLock sync.Mutex

func LambdaClient() *lambda.Client {
	lambdaClientLock.Lock()
	defer lambdaClientLock.Unlock()
	if lambdaClient == nil {
		lambdaClient = lambda.NewFromConfig(*Session())
	}
	return lambdaClient
}

type LambdaInvokeAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type LambdaInvokeResult struct {
	Payload []byte
	Log     string
}

// LambdaInvoke runs the function synchronously with a tail of its logs. A
// function error is returned as an error carrying the payload.
func LambdaInvoke(ctx context.Context, api LambdaInvokeAPI, name string, payload []byte) (*LambdaInvokeResult, error) {
	out, err := api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(name),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		LogType:        lambdatypes.LogTypeTail,
		Payload:        payload,
	})
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	result := &LambdaInvokeResult{Payload: out.Payload}
	if out.LogResult != nil {
		data, err := base64.StdEncoding.DecodeString(*out.LogResult)
		if err == nil {
			result.Log = string(data)
		} else {
			result.Log = *out.LogResult
		}
	}
	if out.FunctionError != nil {
		err := fmt.Errorf("lambda %s failed: %s: %s", name, *out.FunctionError, string(out.Payload))
		Logger.Println("error:", err)
		return result, err
	}
	return result, nil
}

const (
	LambdaRuntime      = "provided.al2023"
	LambdaHandler      = "bootstrap"
	LambdaTimeout      = 30
	LambdaMemory       = 128
	lambdaArchitecture = lambdatypes.ArchitectureArm64
)

type LambdaEnsureAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
}

// LambdaFunction is the desired state of a go function on the provided
// runtime. Zip holds a bootstrap binary, see LambdaZipGo.
type LambdaFunction struct {
	Name    string
	RoleArn string
	Env     map[string]string
	Timeout int32
	Memory  int32
	Zip     []byte
}

// lambdaRetry retries calls lambda rejects while a new role propagates or
// while a previous update is still in progress.
func lambdaRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(30),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var invalid *lambdatypes.InvalidParameterValueException
			var conflict *lambdatypes.ResourceConflictException
			return errors.As(err, &invalid) || errors.As(err, &conflict)
		}),
	)
}

// LambdaEnsure creates the function, or updates its code and then its
// configuration when either differs. It returns the function arn.
func LambdaEnsure(ctx context.Context, api LambdaEnsureAPI, fn *LambdaFunction, preview bool) (string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "LambdaEnsure"}
		d.Start()
		defer d.End()
	}
	if fn.Timeout == 0 {
		fn.Timeout = LambdaTimeout
	}
	if fn.Memory == 0 {
		fn.Memory = LambdaMemory
	}
	env := &lambdatypes.Environment{Variables: fn.Env}
	out, err := api.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(fn.Name),
	})
	if err != nil {
		var nf *lambdatypes.ResourceNotFoundException
		if !errors.As(err, &nf) {
			Logger.Println("error:", err)
			return "", err
		}
		var arn string
		if !preview {
			err := lambdaRetry(ctx, func() error {
				created, err := api.CreateFunction(ctx, &lambda.CreateFunctionInput{
					FunctionName:  aws.String(fn.Name),
					Runtime:       LambdaRuntime,
					Handler:       aws.String(LambdaHandler),
					Architectures: []lambdatypes.Architecture{lambdaArchitecture},
					Role:          aws.String(fn.RoleArn),
					Timeout:       aws.Int32(fn.Timeout),
					MemorySize:    aws.Int32(fn.Memory),
					Environment:   env,
					Code:          &lambdatypes.FunctionCode{ZipFile: fn.Zip},
				})
				if err != nil {
					return err
				}
				arn = aws.ToString(created.FunctionArn)
				return nil
			})
			if err != nil {
				Logger.Println("error:", err)
				return "", err
			}
		}
		Logger.Println(PreviewString(preview)+"created function:", fn.Name)
		return arn, nil
	}
	config := out.Configuration
	if config == nil {
		config = &lambdatypes.FunctionConfiguration{}
	}
	if !preview {
		err := lambdaRetry(ctx, func() error {
			_, err := api.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
				FunctionName:  aws.String(fn.Name),
				Architectures: []lambdatypes.Architecture{lambdaArchitecture},
				ZipFile:       fn.Zip,
			})
			return err
		})
		if err != nil {
			Logger.Println("error:", err)
			return "", err
		}
	}
	Logger.Println(PreviewString(preview)+"updated function code:", fn.Name)
	if lambdaConfigEqual(config, fn) {
		return aws.ToString(config.FunctionArn), nil
	}
	if !preview {
		err := lambdaRetry(ctx, func() error {
			_, err := api.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
				FunctionName: aws.String(fn.Name),
				Runtime:      LambdaRuntime,
				Handler:      aws.String(LambdaHandler),
				Role:         aws.String(fn.RoleArn),
				Timeout:      aws.Int32(fn.Timeout),
				MemorySize:   aws.Int32(fn.Memory),
				Environment:  env,
			})
			return err
		})
		if err != nil {
			Logger.Println("error:", err)
			return "", err
		}
	}
	Logger.Println(PreviewString(preview)+"updated function configuration:", fn.Name)
	return aws.ToString(config.FunctionArn), nil
}

func lambdaConfigEqual(config *lambdatypes.FunctionConfiguration, fn *LambdaFunction) bool {
	var env map[string]string
	if config.Environment != nil {
		env = config.Environment.Variables
	}
	return config.Runtime == LambdaRuntime &&
		aws.ToString(config.Handler) == LambdaHandler &&
		aws.ToString(config.Role) == fn.RoleArn &&
		aws.ToInt32(config.Timeout) == fn.Timeout &&
		aws.ToInt32(config.MemorySize) == fn.Memory &&
		maps.Equal(env, fn.Env)
}

// LambdaZipGo cross compiles the go main package in dir for the provided
// runtime and returns a zip holding it as the bootstrap executable.
func LambdaZipGo(ctx context.Context, dir string) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "ddbstream-lambda-")
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmp) }()
	bin := filepath.Join(tmp, LambdaHandler)
	cmd := exec.CommandContext(ctx, "go", "build", "-ldflags=-s -w", "-tags", "lambda.norpc netgo osusergo", "-o", bin, ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS=linux", "GOARCH="+string(lambdaArchitecture))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	data, err := os.ReadFile(bin)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return lambdaZip(data)
}

func lambdaZip(bootstrap []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	header := &zip.FileHeader{Name: LambdaHandler, Method: zip.Deflate}
	header.SetMode(0o755)
	f, err := w.CreateHeader(header)
	if err != nil {
		return nil, err
	}
	_, err = f.Write(bootstrap)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
