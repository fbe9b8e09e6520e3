package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/gqlstack/stack/cfn"
)

type fakeSTS struct {
	arn string
	err error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012"), Arn: aws.String(f.arn)}, nil
}

// fakeIAM denies every action in deny and returns one result per page.
type fakeIAM struct {
	deny  map[string]bool
	calls []*iam.SimulatePrincipalPolicyInput
}

func (f *fakeIAM) SimulatePrincipalPolicy(_ context.Context, in *iam.SimulatePrincipalPolicyInput, _ ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	f.calls = append(f.calls, in)
	idx := len(f.calls) - 1
	action := in.ActionNames[idx]
	decision := iamtypes.PolicyEvaluationDecisionTypeAllowed
	if f.deny[action] {
		decision = iamtypes.PolicyEvaluationDecisionTypeImplicitDeny
	}
	out := &iam.SimulatePrincipalPolicyOutput{
		EvaluationResults: []iamtypes.EvaluationResult{{
			EvalActionName: aws.String(action),
			EvalDecision:   decision,
		}},
	}
	if idx < len(in.ActionNames)-1 {
		out.IsTruncated = true
		out.Marker = aws.String(action)
	}
	return out, nil
}

func TestRequiredActions(t *testing.T) {
	tmpl := cfn.New("")
	tmpl.Resources["Table"] = cfn.Resource{Type: cfn.TypeTable}
	tmpl.Resources["Role"] = cfn.Resource{Type: cfn.TypeRole}
	tmpl.Resources["Odd"] = cfn.Resource{Type: "AWS::SNS::Topic"}

	actions, unknown := RequiredActions(tmpl)
	assert.Equal(t, []string{"cloudformation:CreateStack", "dynamodb:CreateTable", "iam:CreateRole", "iam:PassRole"}, actions)
	assert.Equal(t, []string{"AWS::SNS::Topic"}, unknown)
}

func TestRun(t *testing.T) {
	log, _ := test.NewNullLogger()
	fake := &fakeIAM{deny: map[string]bool{"wafv2:CreateWebACL": true}}
	c := Clients{
		STS:    fakeSTS{arn: "arn:aws:sts::123456789012:assumed-role/Deployer/session-1"},
		IAM:    fake,
		Region: "eu-west-1",
	}
	actions := []string{"appsync:CreateGraphqlApi", "dynamodb:CreateTable", "wafv2:CreateWebACL"}

	rep, err := Run(context.Background(), c, actions, log)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", rep.Account)
	assert.Equal(t, "arn:aws:iam::123456789012:role/Deployer", rep.Principal)
	assert.Equal(t, "eu-west-1", rep.Region)
	assert.Equal(t, 3, rep.Checked, "every page is read")
	assert.False(t, rep.OK())
	assert.Equal(t, map[string]string{"wafv2:CreateWebACL": "implicitDeny"}, rep.Denied)

	require.Len(t, fake.calls, 3)
	assert.Equal(t, "arn:aws:iam::123456789012:role/Deployer", aws.ToString(fake.calls[0].PolicySourceArn))
	assert.Nil(t, fake.calls[0].Marker)
	assert.Equal(t, "appsync:CreateGraphqlApi", aws.ToString(fake.calls[1].Marker))
}

func TestRunIdentityError(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := Clients{STS: fakeSTS{err: errors.New("expired token")}, IAM: &fakeIAM{}}
	_, err := Run(context.Background(), c, []string{"dynamodb:CreateTable"}, log)
	require.ErrorContains(t, err, "expired token")
}

func TestPrincipalARN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"arn:aws:iam::123456789012:user/alice", "arn:aws:iam::123456789012:user/alice", false},
		{"arn:aws:sts::123456789012:assumed-role/Admin/bob", "arn:aws:iam::123456789012:role/Admin", false},
		{"arn:aws-cn:sts::123456789012:assumed-role/Admin/bob", "arn:aws-cn:iam::123456789012:role/Admin", false},
		{"arn:aws:sts::123456789012:federated-user/carol", "", true},
		{"not-an-arn", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PrincipalARN(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
