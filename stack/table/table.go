// Package table describes the DynamoDB table behind the API and renders it
// as a template resource. Key definitions use the DynamoDB SDK types so the
// same definition drives both the template and the seed writer.
package table

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/cfn"
)

type TableDefinition struct {
	// Name is the physical table name. Empty lets CloudFormation pick one.
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	TimeToLiveKey  string
	GSIs           []GSIDefinition
}

// GSIDefinition represents a Global Secondary Index definition.
type GSIDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
}

func (t TableDefinition) Validate() error {
	if t.KeyDefinitions.PartitionKey.Name == "" {
		return gqlstack.ConfigError{Field: "table.partitionKey", Reason: "must not be empty"}
	}
	if err := t.KeyDefinitions.validate(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, g := range t.GSIs {
		if g.Name == "" || seen[g.Name] {
			return gqlstack.ConfigError{Field: "table.gsis", Reason: fmt.Sprintf("index name %q is empty or duplicated", g.Name)}
		}
		seen[g.Name] = true
		if g.KeyDefinitions.PartitionKey.Name == "" {
			return gqlstack.ConfigError{Field: "table.gsis", Reason: fmt.Sprintf("index %q has no partition key", g.Name)}
		}
		if err := g.KeyDefinitions.validate(); err != nil {
			return err
		}
	}
	return nil
}

// KeySchema returns the primary key schema of the table.
func (t TableDefinition) KeySchema() []types.KeySchemaElement {
	return t.KeyDefinitions.keySchema()
}

// AttributeDefinitions returns one definition per key attribute used by the
// table or any of its GSIs, in first-use order.
func (t TableDefinition) AttributeDefinitions() []types.AttributeDefinition {
	var defs []types.AttributeDefinition
	seen := make(map[string]bool)
	add := func(k KeyDef) {
		if k.Name == "" || seen[k.Name] {
			return
		}
		seen[k.Name] = true
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(k.Name),
			AttributeType: types.ScalarAttributeType(k.Kind),
		})
	}
	add(t.KeyDefinitions.PartitionKey)
	add(t.KeyDefinitions.SortKey)
	for _, g := range t.GSIs {
		add(g.KeyDefinitions.PartitionKey)
		add(g.KeyDefinitions.SortKey)
	}
	return defs
}

type Throughput struct {
	Read  int64
	Write int64
}

// Resource renders the table. A zero throughput selects on-demand billing.
func (t TableDefinition) Resource(throughput Throughput, retain bool) cfn.Resource {
	props := cfn.Props{
		"KeySchema":            keySchemaProps(t.KeySchema()),
		"AttributeDefinitions": attributeProps(t.AttributeDefinitions()),
	}
	if t.Name != "" {
		props["TableName"] = t.Name
	}
	provisioned := throughput.Read > 0 && throughput.Write > 0
	if provisioned {
		props["ProvisionedThroughput"] = throughputProps(throughput)
	} else {
		props["BillingMode"] = string(types.BillingModePayPerRequest)
	}
	if t.TimeToLiveKey != "" {
		props["TimeToLiveSpecification"] = cfn.Props{
			"AttributeName": t.TimeToLiveKey,
			"Enabled":       true,
		}
	}
	if len(t.GSIs) > 0 {
		gsis := make([]any, len(t.GSIs))
		for i, g := range t.GSIs {
			gsi := cfn.Props{
				"IndexName":  g.Name,
				"KeySchema":  keySchemaProps(g.KeyDefinitions.keySchema()),
				"Projection": cfn.Props{"ProjectionType": string(types.ProjectionTypeAll)},
			}
			if provisioned {
				gsi["ProvisionedThroughput"] = throughputProps(throughput)
			}
			gsis[i] = gsi
		}
		props["GlobalSecondaryIndexes"] = gsis
	}
	r := cfn.Resource{Type: cfn.TypeTable, Properties: props}
	if retain {
		r.DeletionPolicy = cfn.PolicyRetain
		r.UpdateReplacePolicy = cfn.PolicyRetain
	}
	return r
}

func keySchemaProps(elems []types.KeySchemaElement) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = cfn.Props{
			"AttributeName": aws.ToString(e.AttributeName),
			"KeyType":       string(e.KeyType),
		}
	}
	return out
}

func attributeProps(defs []types.AttributeDefinition) []any {
	out := make([]any, len(defs))
	for i, d := range defs {
		out[i] = cfn.Props{
			"AttributeName": aws.ToString(d.AttributeName),
			"AttributeType": string(d.AttributeType),
		}
	}
	return out
}

func throughputProps(t Throughput) cfn.Props {
	return cfn.Props{
		"ReadCapacityUnits":  t.Read,
		"WriteCapacityUnits": t.Write,
	}
}

// ExtractPrimaryKey extracts the primary key values from a document.
func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if k.SortKey.Name == "" {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		return v
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		return nil
	}
}
