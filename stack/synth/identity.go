package synth

import (
	"github.com/acksell/gqlstack/stack/cfn"
)

const (
	UserPoolID       = "UserPool"
	UserPoolClientID = "UserPoolWebClient"
)

// identity is the Cognito user pool with self sign-up and verified email,
// plus one app client.
func identity(name string) cfn.Fragment {
	frag := cfn.NewFragment()
	frag.Resources[UserPoolID] = cfn.Resource{
		Type: cfn.TypeUserPool,
		Properties: cfn.Props{
			"UserPoolName":           name,
			"AdminCreateUserConfig":  cfn.Props{"AllowAdminCreateUserOnly": false},
			"AutoVerifiedAttributes": []any{"email"},
			"Schema": []any{cfn.Props{
				"Name":     "email",
				"Required": true,
				"Mutable":  true,
			}},
			"AccountRecoverySetting": cfn.Props{
				"RecoveryMechanisms": []any{cfn.Props{"Name": "verified_email", "Priority": 1}},
			},
		},
		DeletionPolicy:      cfn.PolicyRetain,
		UpdateReplacePolicy: cfn.PolicyRetain,
	}
	frag.Resources[UserPoolClientID] = cfn.Resource{
		Type: cfn.TypeUserPoolClient,
		Properties: cfn.Props{
			"UserPoolId":                 cfn.Ref(UserPoolID),
			"PreventUserExistenceErrors": "ENABLED",
			"SupportedIdentityProviders": []any{"COGNITO"},
		},
	}
	return frag
}
