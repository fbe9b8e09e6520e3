// Package preflight checks, before deployment, that the current AWS identity
// may create every resource type in a synthesized template.
package preflight

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus"

	"github.com/acksell/gqlstack/stack/cfn"
)

type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type IAMClient interface {
	SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)
}

// Clients bundles the AWS clients a preflight needs.
type Clients struct {
	STS    STSClient
	IAM    IAMClient
	Region string
}

// NewClients loads the shared AWS configuration. Empty profile and region
// fall back to the environment.
func NewClients(ctx context.Context, profile, region string) (Clients, aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return Clients{}, aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return Clients{
		STS:    sts.NewFromConfig(cfg),
		IAM:    iam.NewFromConfig(cfg),
		Region: cfg.Region,
	}, cfg, nil
}

// actionsByType are the provisioning calls CloudFormation makes per type.
var actionsByType = map[string][]string{
	cfn.TypeUserPool:          {"cognito-idp:CreateUserPool"},
	cfn.TypeUserPoolClient:    {"cognito-idp:CreateUserPoolClient"},
	cfn.TypeGraphQLAPI:        {"appsync:CreateGraphqlApi"},
	cfn.TypeGraphQLSchema:     {"appsync:StartSchemaCreation"},
	cfn.TypeAPIKey:            {"appsync:CreateApiKey"},
	cfn.TypeAPICache:          {"appsync:CreateApiCache"},
	cfn.TypeDataSource:        {"appsync:CreateDataSource"},
	cfn.TypeResolver:          {"appsync:CreateResolver"},
	cfn.TypeTable:             {"dynamodb:CreateTable"},
	cfn.TypeFunction:          {"lambda:CreateFunction"},
	cfn.TypeRole:              {"iam:CreateRole", "iam:PassRole"},
	cfn.TypePolicy:            {"iam:PutRolePolicy"},
	cfn.TypeLogGroup:          {"logs:CreateLogGroup"},
	cfn.TypeMetricFilter:      {"logs:PutMetricFilter"},
	cfn.TypeAlarm:             {"cloudwatch:PutMetricAlarm"},
	cfn.TypeIPSet:             {"wafv2:CreateIPSet"},
	cfn.TypeWebACL:            {"wafv2:CreateWebACL"},
	cfn.TypeWebACLAssociation: {"wafv2:AssociateWebACL"},
}

// RequiredActions lists the IAM actions needed to create t, sorted.
// Unknown resource types are returned separately.
func RequiredActions(t *cfn.Template) (actions []string, unknown []string) {
	set := map[string]bool{"cloudformation:CreateStack": true}
	for typ := range t.CountByType() {
		acts, ok := actionsByType[typ]
		if !ok {
			unknown = append(unknown, typ)
			continue
		}
		for _, a := range acts {
			set[a] = true
		}
	}
	sort.Strings(unknown)
	return cfn.SortedKeys(set), unknown
}

type Report struct {
	Account   string
	Principal string
	Region    string
	Checked   int
	// Denied maps each action that is not allowed to its decision.
	Denied map[string]string
}

func (r Report) OK() bool { return len(r.Denied) == 0 }

// Run resolves the caller and simulates its policies over actions.
func Run(ctx context.Context, c Clients, actions []string, log logrus.FieldLogger) (Report, error) {
	id, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Report{}, fmt.Errorf("get caller identity: %w", err)
	}
	principal, err := PrincipalARN(aws.ToString(id.Arn))
	if err != nil {
		return Report{}, err
	}
	rep := Report{
		Account:   aws.ToString(id.Account),
		Principal: principal,
		Region:    c.Region,
		Denied:    make(map[string]string),
	}
	log.WithFields(logrus.Fields{"account": rep.Account, "principal": principal}).Debug("simulating policies")

	p := iam.NewSimulatePrincipalPolicyPaginator(c.IAM, &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: aws.String(principal),
		ActionNames:     actions,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("simulate principal policy: %w", err)
		}
		for _, r := range page.EvaluationResults {
			rep.Checked++
			if r.EvalDecision != iamtypes.PolicyEvaluationDecisionTypeAllowed {
				rep.Denied[aws.ToString(r.EvalActionName)] = string(r.EvalDecision)
			}
		}
	}
	return rep, nil
}

// PrincipalARN turns a caller ARN into the IAM ARN policies are attached to.
// Assumed-role sessions map to their role.
func PrincipalARN(callerARN string) (string, error) {
	parts := strings.SplitN(callerARN, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return "", fmt.Errorf("malformed caller arn %q", callerARN)
	}
	partition, service, account, resource := parts[1], parts[2], parts[4], parts[5]
	if service == "iam" {
		return callerARN, nil
	}
	if service == "sts" && strings.HasPrefix(resource, "assumed-role/") {
		segs := strings.Split(resource, "/")
		if len(segs) >= 3 {
			return fmt.Sprintf("arn:%s:iam::%s:role/%s", partition, account, segs[1]), nil
		}
	}
	return "", fmt.Errorf("cannot simulate policies for %q", callerARN)
}
