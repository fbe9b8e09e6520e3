package gqlstack

import (
	"fmt"
	"strings"
)

// ConfigError reports a malformed or missing input value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	field := strings.TrimSpace(e.Field)
	if field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", field, e.Reason)
}

// TemplateKind selects the request or response mapping template.
type TemplateKind string

const (
	RequestTemplate  TemplateKind = "req"
	ResponseTemplate TemplateKind = "res"
)

// TemplateNotFoundError is returned when a template-driven field has no override
// and no file at the convention path.
type TemplateNotFoundError struct {
	Type  OperationType
	Field string
	Kind  TemplateKind
	Path  string
}

func (e TemplateNotFoundError) Error() string {
	return fmt.Sprintf("mapping template not found for %s.%s (%s): %s", e.Type, e.Field, e.Kind, e.Path)
}

// DuplicateBindingError is returned when two bindings share (Type, Field).
type DuplicateBindingError struct {
	Type  OperationType
	Field string
}

func (e DuplicateBindingError) Error() string {
	return fmt.Sprintf("duplicate field binding %s.%s", e.Type, e.Field)
}

// TemplateFileName is the convention file name of a mapping template.
func TemplateFileName(typ OperationType, field string, kind TemplateKind) string {
	return fmt.Sprintf("%s.%s.%s.vtl", typ, field, kind)
}
