// Package api builds the AppSync GraphQL API: the API itself, its schema,
// the default API key and the role AppSync uses to write logs.
package api

import (
	"fmt"
	"strings"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/cfn"
)

type AuthMode string

const (
	AuthAPIKey   AuthMode = "API_KEY"
	AuthUserPool AuthMode = "AMAZON_COGNITO_USER_POOLS"
	AuthIAM      AuthMode = "AWS_IAM"
)

func ParseAuthMode(s string) (AuthMode, error) {
	switch m := AuthMode(strings.TrimSpace(s)); m {
	case AuthAPIKey, AuthUserPool, AuthIAM:
		return m, nil
	}
	return "", gqlstack.ConfigError{Field: "authorization", Reason: fmt.Sprintf("unknown mode %q", s)}
}

// Logical ids of the resources created by Build.
const (
	APIID     = "API"
	SchemaID  = "APISchema"
	KeyID     = "APIDefaultApiKey"
	LogRoleID = "APILogsRole"
)

// Ref identifies the provisioned API for the binders.
type Ref struct {
	LogicalID string
	SchemaID  string
	// KeyID is empty when no API key authorization mode is configured.
	KeyID string
}

func (r Ref) ID() cfn.Props  { return cfn.GetAtt(r.LogicalID, "ApiId") }
func (r Ref) Arn() cfn.Props { return cfn.GetAtt(r.LogicalID, "Arn") }
func (r Ref) URL() cfn.Props { return cfn.GetAtt(r.LogicalID, "GraphQLUrl") }

// IDVar is the Fn::Sub placeholder for the API id.
func (r Ref) IDVar() string { return "${" + r.LogicalID + ".ApiId}" }

func (r Ref) HasKey() bool { return r.KeyID != "" }

// Key is the API key value, or nil when the API has no key.
func (r Ref) Key() any {
	if !r.HasKey() {
		return nil
	}
	return cfn.GetAtt(r.KeyID, "ApiKey")
}

type Authorization struct {
	Default    AuthMode
	Additional []AuthMode
	// UserPoolID is the logical id of the Cognito user pool, required when
	// AuthUserPool is one of the modes.
	UserPoolID string
}

func (a Authorization) modes() []AuthMode {
	return append([]AuthMode{a.Default}, a.Additional...)
}

func (a Authorization) has(m AuthMode) bool {
	for _, mode := range a.modes() {
		if mode == m {
			return true
		}
	}
	return false
}

func (a Authorization) validate() error {
	if a.Default == "" {
		return gqlstack.ConfigError{Field: "authorization.default", Reason: "must not be empty"}
	}
	seen := make(map[AuthMode]bool)
	for _, m := range a.modes() {
		if _, err := ParseAuthMode(string(m)); err != nil {
			return err
		}
		if seen[m] {
			return gqlstack.ConfigError{Field: "authorization", Reason: fmt.Sprintf("mode %s listed twice", m)}
		}
		seen[m] = true
	}
	if seen[AuthUserPool] && a.UserPoolID == "" {
		return gqlstack.ConfigError{Field: "authorization", Reason: "user pool mode requires a user pool"}
	}
	return nil
}

type Options struct {
	Name string
	// Schema is the schema definition, inlined without parsing.
	Schema        string
	Authorization Authorization
	// FieldLogLevel is one of NONE, ERROR, ALL.
	FieldLogLevel         string
	ExcludeVerboseContent bool
	XRay                  bool
}

// Build returns the API reference and the resources describing it.
func Build(opts Options) (Ref, cfn.Fragment, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return Ref{}, cfn.Fragment{}, gqlstack.ConfigError{Field: "api.name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(opts.Schema) == "" {
		return Ref{}, cfn.Fragment{}, gqlstack.ConfigError{Field: "api.schema", Reason: "schema definition is empty"}
	}
	if err := opts.Authorization.validate(); err != nil {
		return Ref{}, cfn.Fragment{}, err
	}
	logLevel := opts.FieldLogLevel
	if logLevel == "" {
		logLevel = "ALL"
	}

	ref := Ref{LogicalID: APIID, SchemaID: SchemaID}
	frag := cfn.NewFragment()

	frag.Resources[LogRoleID] = cfn.Resource{
		Type: cfn.TypeRole,
		Properties: cfn.Props{
			"AssumeRolePolicyDocument": cfn.AssumeRolePolicy("appsync.amazonaws.com"),
			"ManagedPolicyArns":        []any{cfn.ManagedPolicy("service-role/AWSAppSyncPushToCloudWatchLogs")},
		},
	}

	props := cfn.Props{
		"Name":               opts.Name,
		"AuthenticationType": string(opts.Authorization.Default),
		"LogConfig": cfn.Props{
			"CloudWatchLogsRoleArn": cfn.GetAtt(LogRoleID, "Arn"),
			"FieldLogLevel":         logLevel,
			"ExcludeVerboseContent": opts.ExcludeVerboseContent,
		},
		"XrayEnabled": opts.XRay,
	}
	if opts.Authorization.Default == AuthUserPool {
		props["UserPoolConfig"] = cfn.Props{
			"UserPoolId":    cfn.Ref(opts.Authorization.UserPoolID),
			"AwsRegion":     cfn.Ref(cfn.AWSRegion),
			"DefaultAction": "ALLOW",
		}
	}
	if len(opts.Authorization.Additional) > 0 {
		var providers []any
		for _, m := range opts.Authorization.Additional {
			p := cfn.Props{"AuthenticationType": string(m)}
			if m == AuthUserPool {
				p["UserPoolConfig"] = cfn.Props{
					"UserPoolId": cfn.Ref(opts.Authorization.UserPoolID),
					"AwsRegion":  cfn.Ref(cfn.AWSRegion),
				}
			}
			providers = append(providers, p)
		}
		props["AdditionalAuthenticationProviders"] = providers
	}
	frag.Resources[APIID] = cfn.Resource{Type: cfn.TypeGraphQLAPI, Properties: props}

	frag.Resources[SchemaID] = cfn.Resource{
		Type: cfn.TypeGraphQLSchema,
		Properties: cfn.Props{
			"ApiId":      ref.ID(),
			"Definition": opts.Schema,
		},
	}

	if opts.Authorization.has(AuthAPIKey) {
		ref.KeyID = KeyID
		frag.Resources[KeyID] = cfn.Resource{
			Type: cfn.TypeAPIKey,
			Properties: cfn.Props{
				"ApiId":       ref.ID(),
				"Description": "default",
			},
		}
	}
	return ref, frag, nil
}
