package cfn

const policyVersion = "2012-10-17"

// AssumeRolePolicy is a trust policy letting the given service principal
// (e.g. "lambda.amazonaws.com") assume a role.
func AssumeRolePolicy(service string) Props {
	return PolicyDocument(Props{
		"Effect":    "Allow",
		"Principal": Props{"Service": service},
		"Action":    "sts:AssumeRole",
	})
}

func PolicyDocument(statements ...Props) Props {
	stmts := make([]any, len(statements))
	for i, s := range statements {
		stmts[i] = s
	}
	return Props{
		"Version":   policyVersion,
		"Statement": stmts,
	}
}

// Allow builds an Allow statement over the given actions and resources.
func Allow(actions []string, resources ...any) Props {
	acts := make([]any, len(actions))
	for i, a := range actions {
		acts[i] = a
	}
	return Props{
		"Effect":   "Allow",
		"Action":   acts,
		"Resource": append([]any{}, resources...),
	}
}

// ManagedPolicy returns the partition-aware ARN of an AWS managed policy,
// e.g. "service-role/AWSLambdaBasicExecutionRole".
func ManagedPolicy(name string) Props {
	return Sub("arn:${AWS::Partition}:iam::aws:policy/" + name)
}
