// Package gqlstack holds the domain types shared by the stack generator:
// field bindings, data source references and the generation errors.
package gqlstack

import (
	"fmt"
	"regexp"
	"strings"
)

// OperationType is the GraphQL root type a resolver is attached to.
type OperationType string

const (
	Query        OperationType = "Query"
	Mutation     OperationType = "Mutation"
	Subscription OperationType = "Subscription"
)

// ParseOperationType accepts the root type names as they appear in a schema.
func ParseOperationType(s string) (OperationType, error) {
	switch OperationType(strings.TrimSpace(s)) {
	case Query:
		return Query, nil
	case Mutation:
		return Mutation, nil
	case Subscription:
		return Subscription, nil
	}
	return "", ConfigError{Field: "typeName", Reason: fmt.Sprintf("unknown operation type %q", s)}
}

type DataSourceKind int

const (
	// TemplateDrivenKind sources need request/response mapping templates (DynamoDB).
	TemplateDrivenKind DataSourceKind = iota
	// DirectInvokeKind sources receive the raw invocation context (Lambda).
	DirectInvokeKind
)

func (k DataSourceKind) String() string {
	switch k {
	case TemplateDrivenKind:
		return "template-driven"
	case DirectInvokeKind:
		return "direct-invoke"
	default:
		return fmt.Sprintf("DataSourceKind(%d)", int(k))
	}
}

// DataSource is a provisioned backend a resolver can be bound to.
// The only implementations are TemplateDriven and DirectInvoke.
type DataSource interface {
	// SourceName is the AppSync data source name referenced by resolvers.
	SourceName() string
	// ResourceID is the logical id of the data source in the template.
	ResourceID() string
	Kind() DataSourceKind
	isDataSource()
}

// TemplateDriven is a table-backed data source.
type TemplateDriven struct {
	Name      string
	LogicalID string
}

func (d TemplateDriven) SourceName() string   { return d.Name }
func (d TemplateDriven) ResourceID() string   { return d.LogicalID }
func (d TemplateDriven) Kind() DataSourceKind { return TemplateDrivenKind }
func (TemplateDriven) isDataSource()          {}

// DirectInvoke is a function-backed data source.
type DirectInvoke struct {
	Name      string
	LogicalID string
}

func (d DirectInvoke) SourceName() string   { return d.Name }
func (d DirectInvoke) ResourceID() string   { return d.LogicalID }
func (d DirectInvoke) Kind() DataSourceKind { return DirectInvokeKind }
func (DirectInvoke) isDataSource()          {}

// CachingPolicy is the per-resolver cache configuration.
type CachingPolicy struct {
	// TTL in seconds.
	TTL  int
	Keys []string
}

// FieldBinding declares one resolver. Identity is (Type, Field).
type FieldBinding struct {
	Type       OperationType
	Field      string
	DataSource DataSource
	Caching    *CachingPolicy

	// Request and Response are already rendered template overrides.
	Request  *string
	Response *string
}

// Key returns the identity of the binding, e.g. "Query.getTodo".
func (f FieldBinding) Key() string {
	return string(f.Type) + "." + f.Field
}

// graphQLName is the GraphQL Name production. Template file names and
// logical ids are built from it unchanged.
var graphQLName = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Validate checks that the binding carries the fields every stage needs.
func (f FieldBinding) Validate() error {
	if f.Type == "" {
		return ConfigError{Field: "typeName", Reason: "must not be empty"}
	}
	if _, err := ParseOperationType(string(f.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(f.Field) == "" {
		return ConfigError{Field: "fieldName", Reason: fmt.Sprintf("must not be empty for %s", f.Type)}
	}
	if !graphQLName.MatchString(f.Field) {
		return ConfigError{Field: "fieldName", Reason: fmt.Sprintf("%q is not a GraphQL name", f.Field)}
	}
	if f.Caching != nil && f.Caching.TTL <= 0 {
		return ConfigError{Field: "caching.ttl", Reason: fmt.Sprintf("must be positive for %s", f.Key())}
	}
	return nil
}

// CheckUnique rejects bindings that share (Type, Field).
func CheckUnique(fields []FieldBinding) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		k := f.Key()
		if _, ok := seen[k]; ok {
			return DuplicateBindingError{Type: f.Type, Field: f.Field}
		}
		seen[k] = struct{}{}
	}
	return nil
}
