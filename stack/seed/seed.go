// Package seed loads fixture items into the deployed table.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/acksell/gqlstack/stack/table"
)

type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// LoadItems reads a YAML (or JSON) list of items.
func LoadItems(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return items, nil
}

type Seeder struct {
	Client    PutItemAPI
	TableName string
	Table     table.TableDefinition
	// Overwrite replaces existing items. Otherwise items whose key already
	// exists are skipped.
	Overwrite bool
	Log       logrus.FieldLogger
}

type Result struct {
	Written int
	Skipped int
}

// Seed writes items in order and stops at the first failure.
func (s *Seeder) Seed(ctx context.Context, items []map[string]any) (Result, error) {
	var res Result
	for i, item := range items {
		in, key, err := s.putInput(item)
		if err != nil {
			return res, fmt.Errorf("item %d: %w", i, err)
		}
		_, err = s.Client.PutItem(ctx, in)
		var exists *types.ConditionalCheckFailedException
		switch {
		case errors.As(err, &exists):
			s.Log.WithFields(logrus.Fields{"item": i, "key": key.Values}).Debug("key exists, skipping")
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("put item %d: %w", i, err)
		default:
			res.Written++
		}
	}
	return res, nil
}

// putInput builds the request for item and returns its primary key. Unless
// Overwrite is set the put is conditional on no item holding that key.
func (s *Seeder) putInput(item map[string]any) (*dynamodb.PutItemInput, table.PrimaryKey, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, table.PrimaryKey{}, fmt.Errorf("marshal: %w", err)
	}
	pk, err := s.Table.ExtractPrimaryKey(av)
	if err != nil {
		return nil, table.PrimaryKey{}, err
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.TableName),
		Item:      av,
	}
	if s.Overwrite {
		return in, pk, nil
	}
	cond, err := keyNotExists(pk)
	if err != nil {
		return nil, table.PrimaryKey{}, err
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, table.PrimaryKey{}, fmt.Errorf("build condition: %w", err)
	}
	in.ConditionExpression = expr.Condition()
	in.ExpressionAttributeNames = expr.Names()
	in.ExpressionAttributeValues = expr.Values()
	return in, pk, nil
}

// keyNotExists requires every key attribute of pk to be absent.
func keyNotExists(pk table.PrimaryKey) (expression.ConditionBuilder, error) {
	key, err := pk.DDB()
	if err != nil {
		return expression.ConditionBuilder{}, err
	}
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)
	cond := expression.AttributeNotExists(expression.Name(names[0]))
	for _, name := range names[1:] {
		cond = cond.And(expression.AttributeNotExists(expression.Name(name)))
	}
	return cond, nil
}
