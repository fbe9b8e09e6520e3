// gqlstack generates the CloudFormation template of an AppSync GraphQL
// backend from a gqlstack.yaml project.
//
// # Commands
//
//	gqlstack synth      Write the template and record it in the local history
//	gqlstack validate   Generate the template and print a summary
//	gqlstack diff       Diff a fresh synthesis against the last recorded one
//	gqlstack history    List recorded syntheses
//	gqlstack preflight  Check the caller may create every resource
//	gqlstack seed       Load fixture items into the deployed table
//	gqlstack version    Print the version
package main

import (
	"os"
)

func main() {
	o := &GlobalOptions{}
	if err := o.Execute(NewGQLStackCommand(o)); err != nil {
		os.Exit(1)
	}
}
