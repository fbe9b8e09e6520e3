package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/gqlstack/stack/table"
)

// fakeTable is a PutItem client that honours attribute_not_exists on the
// partition key.
type fakeTable struct {
	items map[string]map[string]types.AttributeValue
	calls []*dynamodb.PutItemInput
	fail  error
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.calls = append(f.calls, in)
	if f.fail != nil {
		return nil, f.fail
	}
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	if _, ok := f.items[id]; ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

var todos = table.TableDefinition{
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "id", Kind: table.KeyKindS},
	},
}

func newSeeder(client PutItemAPI, overwrite bool) *Seeder {
	log, _ := test.NewNullLogger()
	return &Seeder{Client: client, TableName: "todos-123", Table: todos, Overwrite: overwrite, Log: log}
}

func TestLoadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: "1"
  title: write tests
  done: false
- id: "2"
  title: ship
  tags: [release]
`), 0o644))

	items, err := LoadItems(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "write tests", items[0]["title"])
	assert.Equal(t, []any{"release"}, items[1]["tags"])
}

func TestSeed(t *testing.T) {
	fake := &fakeTable{items: map[string]map[string]types.AttributeValue{}}
	s := newSeeder(fake, false)
	items := []map[string]any{
		{"id": "1", "title": "write tests"},
		{"id": "2", "title": "ship", "priority": 3},
	}

	res, err := s.Seed(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 2}, res)

	in := fake.calls[0]
	assert.Equal(t, "todos-123", aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists (#0)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, map[string]string{"#0": "id"}, in.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, fake.items["2"]["priority"])

	res, err = s.Seed(context.Background(), items[:1])
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res, "existing keys are skipped")
}

type recordingClient struct {
	calls []*dynamodb.PutItemInput
}

func (c *recordingClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.calls = append(c.calls, in)
	return &dynamodb.PutItemOutput{}, nil
}

func TestSeedCompositeKeyCondition(t *testing.T) {
	client := &recordingClient{}
	log, _ := test.NewNullLogger()
	s := &Seeder{
		Client:    client,
		TableName: "events",
		Table: table.TableDefinition{KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "tenant", Kind: table.KeyKindS},
			SortKey:      table.KeyDef{Name: "seq", Kind: table.KeyKindN},
		}},
		Log: log,
	}

	res, err := s.Seed(context.Background(), []map[string]any{{"tenant": "acme", "seq": 1, "body": "x"}})
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 1}, res)

	in := client.calls[0]
	assert.Equal(t, "(attribute_not_exists (#0)) AND (attribute_not_exists (#1))", aws.ToString(in.ConditionExpression))
	assert.ElementsMatch(t, []string{"tenant", "seq"}, []string{in.ExpressionAttributeNames["#0"], in.ExpressionAttributeNames["#1"]})

	_, err = s.Seed(context.Background(), []map[string]any{{"tenant": "acme"}})
	require.ErrorContains(t, err, `sort key "seq" not found`)
}

func TestSeedOverwrite(t *testing.T) {
	fake := &fakeTable{items: map[string]map[string]types.AttributeValue{}}
	s := newSeeder(fake, true)
	_, err := s.Seed(context.Background(), []map[string]any{{"id": "1"}})
	require.NoError(t, err)
	res, err := s.Seed(context.Background(), []map[string]any{{"id": "1", "title": "again"}})
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 1}, res)
	assert.Nil(t, fake.calls[1].ConditionExpression)
}

func TestSeedErrors(t *testing.T) {
	fake := &fakeTable{items: map[string]map[string]types.AttributeValue{}}
	s := newSeeder(fake, false)

	_, err := s.Seed(context.Background(), []map[string]any{{"title": "no key"}})
	require.ErrorContains(t, err, `item 0: partition key "id" not found`)
	assert.Empty(t, fake.calls, "invalid items are rejected before any write")

	_, err = s.Seed(context.Background(), []map[string]any{{"id": 7}})
	require.ErrorContains(t, err, "kind does not match")

	fake.fail = errors.New("throttled")
	res, err := s.Seed(context.Background(), []map[string]any{{"id": "1"}})
	require.ErrorContains(t, err, "throttled")
	assert.Equal(t, Result{}, res)
}
