package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/cfn"
)

var todos = TableDefinition{
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "id", Kind: KeyKindS},
	},
}

func TestResourceOnDemand(t *testing.T) {
	require.NoError(t, todos.Validate())
	r := todos.Resource(Throughput{}, true)

	assert.Equal(t, cfn.TypeTable, r.Type)
	assert.Equal(t, cfn.PolicyRetain, r.DeletionPolicy)
	assert.Equal(t, cfn.PolicyRetain, r.UpdateReplacePolicy)
	assert.Equal(t, "PAY_PER_REQUEST", r.Properties["BillingMode"])
	assert.Equal(t, []any{cfn.Props{"AttributeName": "id", "KeyType": "HASH"}}, r.Properties["KeySchema"])
	assert.Equal(t, []any{cfn.Props{"AttributeName": "id", "AttributeType": "S"}}, r.Properties["AttributeDefinitions"])
	assert.NotContains(t, r.Properties, "TableName")
}

func TestResourceProvisionedWithGSI(t *testing.T) {
	def := TableDefinition{
		Name: "todos",
		KeyDefinitions: PrimaryKeyDefinition{
			PartitionKey: KeyDef{Name: "id", Kind: KeyKindS},
			SortKey:      KeyDef{Name: "version", Kind: KeyKindN},
		},
		TimeToLiveKey: "expires",
		GSIs: []GSIDefinition{{
			Name: "byOwner",
			KeyDefinitions: PrimaryKeyDefinition{
				PartitionKey: KeyDef{Name: "owner", Kind: KeyKindS},
				SortKey:      KeyDef{Name: "version", Kind: KeyKindN},
			},
		}},
	}
	require.NoError(t, def.Validate())
	r := def.Resource(Throughput{Read: 5, Write: 2}, false)

	assert.Empty(t, r.DeletionPolicy)
	assert.Equal(t, "todos", r.Properties["TableName"])
	assert.NotContains(t, r.Properties, "BillingMode")
	assert.Equal(t, cfn.Props{"ReadCapacityUnits": int64(5), "WriteCapacityUnits": int64(2)}, r.Properties["ProvisionedThroughput"])
	assert.Equal(t, cfn.Props{"AttributeName": "expires", "Enabled": true}, r.Properties["TimeToLiveSpecification"])

	attrs := r.Properties["AttributeDefinitions"].([]any)
	require.Len(t, attrs, 3, "shared key attributes are defined once")

	gsis := r.Properties["GlobalSecondaryIndexes"].([]any)
	require.Len(t, gsis, 1)
	gsi := gsis[0].(cfn.Props)
	assert.Equal(t, "byOwner", gsi["IndexName"])
	assert.Equal(t, []any{
		cfn.Props{"AttributeName": "owner", "KeyType": "HASH"},
		cfn.Props{"AttributeName": "version", "KeyType": "RANGE"},
	}, gsi["KeySchema"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		def   TableDefinition
		field string
	}{
		{"missing partition key", TableDefinition{}, "table.partitionKey"},
		{"bad kind", TableDefinition{KeyDefinitions: PrimaryKeyDefinition{PartitionKey: KeyDef{Name: "id", Kind: "BOOL"}}}, "table.key.kind"},
		{"duplicate gsi", TableDefinition{
			KeyDefinitions: todos.KeyDefinitions,
			GSIs: []GSIDefinition{
				{Name: "a", KeyDefinitions: todos.KeyDefinitions},
				{Name: "a", KeyDefinitions: todos.KeyDefinitions},
			},
		}, "table.gsis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr gqlstack.ConfigError
			require.ErrorAs(t, tt.def.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestExtractPrimaryKey(t *testing.T) {
	doc := map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: "todo-1"},
		"title": &types.AttributeValueMemberS{Value: "write tests"},
	}
	pk, err := todos.ExtractPrimaryKey(doc)
	require.NoError(t, err)
	assert.Equal(t, "todo-1", pk.Values.PartitionKey)

	key, err := pk.DDB()
	require.NoError(t, err)
	assert.Equal(t, map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "todo-1"}}, key)

	_, err = todos.ExtractPrimaryKey(map[string]types.AttributeValue{"title": doc["title"]})
	require.ErrorContains(t, err, `partition key "id" not found`)

	_, err = todos.ExtractPrimaryKey(map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "1"}})
	require.ErrorContains(t, err, "kind does not match")
}

func TestExtractPrimaryKeyNumbers(t *testing.T) {
	def := TableDefinition{KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "tenant", Kind: KeyKindS},
		SortKey:      KeyDef{Name: "seq", Kind: KeyKindN},
	}}
	for _, n := range []string{"42", "1.5"} {
		doc := map[string]types.AttributeValue{
			"tenant": &types.AttributeValueMemberS{Value: "acme"},
			"seq":    &types.AttributeValueMemberN{Value: n},
		}
		pk, err := def.ExtractPrimaryKey(doc)
		require.NoError(t, err, n)
		key, err := pk.DDB()
		require.NoError(t, err, n)
		assert.Equal(t, doc, key, n)
	}
}

func TestPrimaryKeyDDBRequiresSortKey(t *testing.T) {
	pk := PrimaryKey{
		Definition: PrimaryKeyDefinition{
			PartitionKey: KeyDef{Name: "id", Kind: KeyKindS},
			SortKey:      KeyDef{Name: "version", Kind: KeyKindN},
		},
		Values: PrimaryKeyValues{PartitionKey: "a"},
	}
	_, err := pk.DDB()
	require.ErrorContains(t, err, "sort key")

	pk.Values.SortKey = 3
	key, err := pk.DDB()
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, key["version"])
}
