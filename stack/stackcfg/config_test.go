package stackcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/gqlstack"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	fields, err := cfg.Bindings()
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "Query.getTodo", fields[0].Key())
	assert.Equal(t, gqlstack.TemplateDriven{Name: "todos", LogicalID: "TodosDataSource"}, fields[0].DataSource)
	assert.Equal(t, gqlstack.DirectInvoke{Name: "lambda", LogicalID: "LambdaDataSource"}, fields[2].DataSource)
	assert.True(t, cfg.API.XRayEnabled())
	assert.True(t, cfg.Table.RetainTable())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
stack: Todo
api:
  xray: false
dataSources:
  - name: notes
    kind: dynamodb
fields:
  - type: Query
    field: getNote
    dataSource: notes
    caching:
      ttl: 30
      keys: ["$context.arguments.id"]
  - type: Mutation
    field: ping
    request: '{"version": "2018-05-29", "payload": {}}'
firewall:
  allowedIPs: ["10.0.0.1"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Todo", cfg.Stack)
	assert.Equal(t, "GraphQLAPI", cfg.API.Name, "unset values keep their defaults")
	assert.False(t, cfg.API.XRayEnabled())
	assert.Equal(t, []string{"10.0.0.1"}, cfg.Firewall.AllowedIPs)
	assert.Equal(t, filepath.Join(dir, "appsync/schema.graphql"), cfg.Path(cfg.API.Schema))

	fields, err := cfg.Bindings()
	require.NoError(t, err)
	require.Len(t, fields, 2, "the file replaces the default field list")
	assert.Equal(t, &gqlstack.CachingPolicy{TTL: 30, Keys: []string{"$context.arguments.id"}}, fields[0].Caching)
	assert.Nil(t, fields[1].DataSource)
	require.NotNil(t, fields[1].Request)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, FileName))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "fields: {not: a list}\n")
	_, err = Load(path)
	require.ErrorContains(t, err, "parsing")
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "stack: Root\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)

	empty := t.TempDir()
	_, err = Find(empty)
	if err != nil {
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty stack", func(c *Config) { c.Stack = "" }, "stack"},
		{"bad log level", func(c *Config) { c.API.FieldLogLevel = "DEBUG" }, "api.fieldLogLevel"},
		{"bad timeout", func(c *Config) { c.Function.Timeout = 0 }, "function.timeout"},
		{"bad key kind", func(c *Config) { c.Table.PartitionKey.Kind = "X" }, "table.key.kind"},
		{"unknown data source kind", func(c *Config) { c.DataSources[0].Kind = "http" }, "dataSources[0].kind"},
		{"duplicate data source", func(c *Config) { c.DataSources[1].Name = "todos" }, "dataSources[1].name"},
		{"unknown data source", func(c *Config) { c.Fields[0].DataSource = "missing" }, "fields[0].dataSource"},
		{"bad type", func(c *Config) { c.Fields[0].Type = "Thing" }, "typeName"},
		{"bad caching", func(c *Config) { c.Fields[0].Caching = &Caching{TTL: 0} }, "caching.ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.DataSources = append([]DataSource(nil), cfg.DataSources...)
			cfg.Fields = append([]Field(nil), cfg.Fields...)
			tt.modify(&cfg)

			var cfgErr gqlstack.ConfigError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidateDuplicateField(t *testing.T) {
	cfg := Default()
	cfg.Fields = append(cfg.Fields, cfg.Fields[0])

	var dup gqlstack.DuplicateBindingError
	require.ErrorAs(t, cfg.Validate(), &dup)
	assert.Equal(t, "getTodo", dup.Field)
}
