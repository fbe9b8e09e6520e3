package cfn

// Resource types emitted by gqlstack.
const (
	TypeUserPool          = "AWS::Cognito::UserPool"
	TypeUserPoolClient    = "AWS::Cognito::UserPoolClient"
	TypeGraphQLAPI        = "AWS::AppSync::GraphQLApi"
	TypeGraphQLSchema     = "AWS::AppSync::GraphQLSchema"
	TypeAPIKey            = "AWS::AppSync::ApiKey"
	TypeAPICache          = "AWS::AppSync::ApiCache"
	TypeDataSource        = "AWS::AppSync::DataSource"
	TypeResolver          = "AWS::AppSync::Resolver"
	TypeTable             = "AWS::DynamoDB::Table"
	TypeFunction          = "AWS::Lambda::Function"
	TypeRole              = "AWS::IAM::Role"
	TypePolicy            = "AWS::IAM::Policy"
	TypeLogGroup          = "AWS::Logs::LogGroup"
	TypeMetricFilter      = "AWS::Logs::MetricFilter"
	TypeAlarm             = "AWS::CloudWatch::Alarm"
	TypeIPSet             = "AWS::WAFv2::IPSet"
	TypeWebACL            = "AWS::WAFv2::WebACL"
	TypeWebACLAssociation = "AWS::WAFv2::WebACLAssociation"
)

// Deletion policies.
const (
	PolicyRetain = "Retain"
	PolicyDelete = "Delete"
)
