package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"gqlstack.yaml": `stack: Todo
firewall:
  allowedIPs: ["10.0.0.1"]
dataSources:
  - name: todos
    kind: dynamodb
  - name: lambda
    kind: lambda
fields:
  - type: Query
    field: getTodo
    dataSource: todos
  - type: Query
    field: listTodos
    dataSource: lambda
`,
		"appsync/schema.graphql":                  "type Query { getTodo(id: ID!): String listTodos: [String] }\n",
		"appsync/resolvers/Query.getTodo.req.vtl": `{"version": "2017-02-28", "operation": "GetItem"}`,
		"appsync/resolvers/Query.getTodo.res.vtl": `$util.toJson($ctx.result)`,
		"lambda/index.js":                         "exports.handler = async () => []\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithOptions(t, args...)
	return out, err
}

func runWithOptions(t *testing.T, args ...string) (string, *GlobalOptions, error) {
	t.Helper()
	o := &GlobalOptions{}
	cmd := NewGQLStackCommand(o)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := o.Execute(cmd)
	return out.String(), o, err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "gqlstack version "+version+"\n", out)
}

func TestValidate(t *testing.T) {
	dir := writeProject(t)
	out, err := run(t, "--config", filepath.Join(dir, "gqlstack.yaml"), "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "stack Todo:")
	assert.Contains(t, out, "AWS::AppSync::Resolver")
	assert.Contains(t, out, "resolver Query.getTodo -> todos")
	assert.Contains(t, out, "resolver Query.listTodos -> lambda")
	assert.NoFileExists(t, filepath.Join(dir, "cdk.out", "template.json"))
}

func TestSynthAndDiff(t *testing.T) {
	dir := writeProject(t)
	config := filepath.Join(dir, "gqlstack.yaml")

	out, err := run(t, "--config", config, "synth")
	require.NoError(t, err)
	assert.Contains(t, out, "gqlstack synth: generated "+filepath.Join(dir, "cdk.out", "template.json"))
	assert.Contains(t, out, "gqlstack synth: recorded")
	first, err := os.ReadFile(filepath.Join(dir, "cdk.out", "template.json"))
	require.NoError(t, err)

	out, err = run(t, "--config", config, "synth")
	require.NoError(t, err)
	assert.NotContains(t, out, "recorded", "an unchanged template is not recorded again")
	second, err := os.ReadFile(filepath.Join(dir, "cdk.out", "template.json"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	out, err = run(t, "--config", config, "diff")
	require.NoError(t, err)
	assert.Equal(t, "gqlstack diff: no changes\n", out)

	out, err = run(t, "--config", config, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "json")

	out, err = run(t, "--config", config, "synth", "--format", "yaml", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "cdk.out", "template.yaml"))
}

func TestSynthMissingTemplate(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "appsync/resolvers/Query.getTodo.res.vtl")))

	_, err := run(t, "--config", filepath.Join(dir, "gqlstack.yaml"), "synth")
	require.ErrorContains(t, err, "Query.getTodo.res.vtl")
	assert.NoDirExists(t, filepath.Join(dir, "cdk.out"), "nothing is written on failure")
}

func TestLogFileClosedOnFailure(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "lambda/index.js")))
	logFile := filepath.Join(dir, "logs", "gqlstack.log")

	_, o, err := runWithOptions(t, "--config", filepath.Join(dir, "gqlstack.yaml"), "--log-file", logFile, "synth")
	require.ErrorContains(t, err, "reading function code")
	assert.Nil(t, o.logFile)
	assert.FileExists(t, logFile)

	_, o, err = runWithOptions(t, "--log-file", logFile, "version")
	require.NoError(t, err)
	assert.Nil(t, o.logFile)
}
