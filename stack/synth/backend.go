package synth

import (
	"fmt"
	"unicode/utf8"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/api"
	"github.com/acksell/gqlstack/stack/cfn"
	"github.com/acksell/gqlstack/stack/stackcfg"
	"github.com/acksell/gqlstack/stack/table"
)

const (
	TableID          = "Table"
	FunctionID       = "Lambda"
	FunctionRoleID   = "LambdaServiceRole"
	FunctionPolicyID = "LambdaServiceRoleDefaultPolicy"

	// TableEnv is the function environment variable holding the table name.
	TableEnv = "TABLE"

	// MaxInlineCode is the largest Code.ZipFile CloudFormation accepts, in
	// characters.
	MaxInlineCode = 4096
)

var (
	tableReadActions = []string{
		"dynamodb:BatchGetItem",
		"dynamodb:ConditionCheckItem",
		"dynamodb:DescribeTable",
		"dynamodb:GetItem",
		"dynamodb:GetRecords",
		"dynamodb:GetShardIterator",
		"dynamodb:Query",
		"dynamodb:Scan",
	}
	tableWriteActions = []string{
		"dynamodb:BatchWriteItem",
		"dynamodb:DeleteItem",
		"dynamodb:PutItem",
		"dynamodb:UpdateItem",
	}
)

func tableResources() []any {
	return []any{
		cfn.GetAtt(TableID, "Arn"),
		cfn.Sub("${" + TableID + ".Arn}/index/*"),
	}
}

func tableFragment(def table.TableDefinition, cfg stackcfg.Table) cfn.Fragment {
	frag := cfn.NewFragment()
	frag.Resources[TableID] = def.Resource(table.Throughput{
		Read:  cfg.Throughput.Read,
		Write: cfg.Throughput.Write,
	}, cfg.RetainTable())
	return frag
}

func checkInlineCode(code string) error {
	if n := utf8.RuneCountInString(code); n > MaxInlineCode {
		return gqlstack.ConfigError{
			Field:  "function.code",
			Reason: fmt.Sprintf("%d characters exceeds the inline limit of %d", n, MaxInlineCode),
		}
	}
	return nil
}

// function is the compute function with its execution role and the read
// grant on the table.
func function(cfg stackcfg.Function, code string) cfn.Fragment {
	frag := cfn.NewFragment()
	frag.Resources[FunctionRoleID] = cfn.Resource{
		Type: cfn.TypeRole,
		Properties: cfn.Props{
			"AssumeRolePolicyDocument": cfn.AssumeRolePolicy("lambda.amazonaws.com"),
			"ManagedPolicyArns":        []any{cfn.ManagedPolicy("service-role/AWSLambdaBasicExecutionRole")},
		},
	}
	frag.Resources[FunctionPolicyID] = cfn.Resource{
		Type: cfn.TypePolicy,
		Properties: cfn.Props{
			"PolicyName":     FunctionPolicyID,
			"PolicyDocument": cfn.PolicyDocument(cfn.Allow(tableReadActions, tableResources()...)),
			"Roles":          []any{cfn.Ref(FunctionRoleID)},
		},
	}
	props := cfn.Props{
		"Code":    cfn.Props{"ZipFile": code},
		"Handler": cfg.Handler,
		"Runtime": cfg.Runtime,
		"Timeout": cfg.Timeout,
		"Role":    cfn.GetAtt(FunctionRoleID, "Arn"),
		"Environment": cfn.Props{"Variables": cfn.Props{
			TableEnv: cfn.Ref(TableID),
		}},
	}
	if cfg.MemorySize > 0 {
		props["MemorySize"] = cfg.MemorySize
	}
	frag.Resources[FunctionID] = cfn.Resource{
		Type:       cfn.TypeFunction,
		Properties: props,
		// The role must carry the table grant before the function runs.
		DependsOn: []string{FunctionPolicyID},
	}
	return frag
}

// dataSources renders every configured data source with the role AppSync
// assumes to reach it.
func dataSources(ref api.Ref, sources []stackcfg.DataSource, resolved map[string]gqlstack.DataSource) (cfn.Fragment, error) {
	frag := cfn.NewFragment()
	for _, s := range sources {
		ds, ok := resolved[s.Name]
		if !ok {
			return cfn.Fragment{}, fmt.Errorf("data source %q was not resolved", s.Name)
		}
		id := ds.ResourceID()
		roleID := id + "ServiceRole"

		props := cfn.Props{
			"ApiId":          ref.ID(),
			"Name":           ds.SourceName(),
			"ServiceRoleArn": cfn.GetAtt(roleID, "Arn"),
		}
		var policy cfn.Props
		switch ds.Kind() {
		case gqlstack.TemplateDrivenKind:
			props["Type"] = "AMAZON_DYNAMODB"
			props["DynamoDBConfig"] = cfn.Props{
				"TableName": cfn.Ref(TableID),
				"AwsRegion": cfn.Ref(cfn.AWSRegion),
			}
			actions := append(append([]string{}, tableReadActions...), tableWriteActions...)
			policy = cfn.PolicyDocument(cfn.Allow(actions, tableResources()...))
		case gqlstack.DirectInvokeKind:
			props["Type"] = "AWS_LAMBDA"
			props["LambdaConfig"] = cfn.Props{"LambdaFunctionArn": cfn.GetAtt(FunctionID, "Arn")}
			policy = cfn.PolicyDocument(cfn.Allow([]string{"lambda:InvokeFunction"}, cfn.GetAtt(FunctionID, "Arn")))
		default:
			return cfn.Fragment{}, fmt.Errorf("data source %q has unsupported kind %s", s.Name, ds.Kind())
		}

		frag.Resources[roleID] = cfn.Resource{
			Type: cfn.TypeRole,
			Properties: cfn.Props{
				"AssumeRolePolicyDocument": cfn.AssumeRolePolicy("appsync.amazonaws.com"),
				"Policies": []any{cfn.Props{
					"PolicyName":     id + "Access",
					"PolicyDocument": policy,
				}},
			},
		}
		frag.Resources[id] = cfn.Resource{
			Type:       cfn.TypeDataSource,
			Properties: props,
		}
	}
	return frag, nil
}
