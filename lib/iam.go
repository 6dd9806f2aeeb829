package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

var iamClient *iam.Client
var iamClientLock sync.Mutex

func IamClient() *iam.Client {
	iamClientLock.Lock()
	defer iamClientLock.Unlock()
	if iamClient == nil {
		iamClient = iam.NewFromConfig(*Session())
	}
	return iamClient
}

type IamRoleAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
}

type iamStatement struct {
	Effect    string            `json:"Effect"`
	Action    string            `json:"Action"`
	Resource  string            `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

type iamPolicyDocument struct {
	Version   string         `json:"Version"`
	Statement []iamStatement `json:"Statement"`
}

func (d iamPolicyDocument) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// IamAllow is one inline role policy granting a single action on a single
// resource, written as "ACTION RESOURCE".
type IamAllow struct {
	Action   string
	Resource string
}

func ParseIamAllow(s string) (*IamAllow, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		err := fmt.Errorf("allow format should be: 'SERVICE:ACTION RESOURCE', got: %s", s)
		Logger.Println("error:", err)
		return nil, err
	}
	return &IamAllow{Action: parts[0], Resource: parts[1]}, nil
}

func (a *IamAllow) String() string {
	return fmt.Sprintf("%s %s", a.Action, a.Resource)
}

func (a *IamAllow) policyDocument() string {
	return iamPolicyDocument{
		Version: "2012-10-17",
		Statement: []iamStatement{{
			Effect:   "Allow",
			Action:   a.Action,
			Resource: a.Resource,
		}},
	}.String()
}

// policyName derives a stable inline policy name from the allow, dropping
// the arn boilerplate and the account and region fields.
func (a *IamAllow) policyName() string {
	action := strings.ReplaceAll(a.Action, "*", "ALL")
	var parts []string
	for i, part := range strings.Split(strings.ReplaceAll(a.Resource, "*", "ALL"), ":") { // arn:aws:service:region:account:target
		if i < 5 && strings.HasPrefix(a.Resource, "arn:") {
			continue
		}
		parts = append(parts, strings.ReplaceAll(part, "/", "__"))
	}
	name := action + "__" + strings.Join(parts, "_")
	name = strings.ReplaceAll(name, ":", "_")
	return strings.TrimRight(name, "_")
}

func iamAssumePolicyDocument(principal string) (string, error) {
	if strings.Contains(principal, ".") {
		err := fmt.Errorf("principal should be '$name', not '$name.amazonaws.com', got: %s", principal)
		Logger.Println("error:", err)
		return "", err
	}
	return iamPolicyDocument{
		Version: "2012-10-17",
		Statement: []iamStatement{{
			Effect:    "Allow",
			Action:    "sts:AssumeRole",
			Principal: map[string]string{"Service": principal + ".amazonaws.com"},
		}},
	}.String(), nil
}

func iamPolicyEqual(a, b string) (bool, error) {
	var aData, bData any
	err := json.Unmarshal([]byte(a), &aData)
	if err != nil {
		return false, err
	}
	err = json.Unmarshal([]byte(b), &bData)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(aData, bData), nil
}

// IamEnsureRole creates a role the principal service can assume, or checks
// that the existing role has the same trust policy. It returns the role arn,
// which is empty when previewing a role that does not exist yet.
func IamEnsureRole(ctx context.Context, api IamRoleAPI, roleName, principal string, preview bool) (string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "IamEnsureRole"}
		d.Start()
		defer d.End()
	}
	assume, err := iamAssumePolicyDocument(principal)
	if err != nil {
		return "", err
	}
	out, err := api.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		var nse *iamtypes.NoSuchEntityException
		if !errors.As(err, &nse) {
			Logger.Println("error:", err)
			return "", err
		}
		if preview {
			Logger.Println(PreviewString(preview)+"created role:", roleName, principal)
			return "", nil
		}
		created, err := api.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(roleName),
			AssumeRolePolicyDocument: aws.String(assume),
		})
		if err != nil {
			Logger.Println("error:", err)
			return "", err
		}
		Logger.Println(PreviewString(preview)+"created role:", roleName, principal)
		return aws.ToString(created.Role.Arn), nil
	}
	document, err := url.QueryUnescape(aws.ToString(out.Role.AssumeRolePolicyDocument))
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	equal, err := iamPolicyEqual(document, assume)
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	if !equal {
		err := fmt.Errorf("role policy mismatch: %s %s != %s", roleName, document, assume)
		Logger.Println("error:", err)
		return "", err
	}
	return aws.ToString(out.Role.Arn), nil
}

// IamEnsureRoleAllows makes the role's inline policies exactly the given
// allows, adding missing ones and removing any others.
func IamEnsureRoleAllows(ctx context.Context, api IamRoleAPI, roleName string, allows []string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "IamEnsureRoleAllows"}
		d.Start()
		defer d.End()
	}
	var allowNames []string
	for _, allowStr := range allows {
		allow, err := ParseIamAllow(allowStr)
		if err != nil {
			return err
		}
		allowNames = append(allowNames, allow.policyName())
		out, err := api.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(allow.policyName()),
		})
		if err != nil {
			var nse *iamtypes.NoSuchEntityException
			if !errors.As(err, &nse) {
				Logger.Println("error:", err)
				return err
			}
		} else {
			document, err := url.QueryUnescape(aws.ToString(out.PolicyDocument))
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			equal, err := iamPolicyEqual(document, allow.policyDocument())
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			if equal {
				continue
			}
		}
		if !preview {
			_, err := api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
				RoleName:       aws.String(roleName),
				PolicyName:     aws.String(allow.policyName()),
				PolicyDocument: aws.String(allow.policyDocument()),
			})
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
		}
		Logger.Println(PreviewString(preview)+"attached role allow:", roleName, allow)
	}
	paginator := iam.NewListRolePoliciesPaginator(api, &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var nse *iamtypes.NoSuchEntityException
			if preview && errors.As(err, &nse) {
				return nil
			}
			Logger.Println("error:", err)
			return err
		}
		for _, name := range page.PolicyNames {
			if slices.Contains(allowNames, name) {
				continue
			}
			if !preview {
				_, err := api.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
					RoleName:   aws.String(roleName),
					PolicyName: aws.String(name),
				})
				if err != nil {
					Logger.Println("error:", err)
					return err
				}
			}
			Logger.Println(PreviewString(preview)+"detached role allow:", roleName, name)
		}
	}
	return nil
}
