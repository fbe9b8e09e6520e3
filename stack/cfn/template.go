// Package cfn is a small CloudFormation document model. Resources carry their
// properties as plain maps so that JSON and YAML encoding sort keys and the
// output is byte-stable for identical inputs.
package cfn

import (
	"fmt"
	"regexp"
	"sort"

	"golang.org/x/exp/constraints"
)

const FormatVersion = "2010-09-09"

// Props holds resource properties or any nested property object.
type Props map[string]any

type Template struct {
	AWSTemplateFormatVersion string               `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string               `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]Resource  `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output    `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

type Parameter struct {
	Type        string `json:"Type" yaml:"Type"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default     string `json:"Default,omitempty" yaml:"Default,omitempty"`
}

type Resource struct {
	Type                string   `json:"Type" yaml:"Type"`
	Properties          Props    `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn           []string `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	DeletionPolicy      string   `json:"DeletionPolicy,omitempty" yaml:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string   `json:"UpdateReplacePolicy,omitempty" yaml:"UpdateReplacePolicy,omitempty"`
}

type Output struct {
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any    `json:"Value" yaml:"Value"`
}

// Fragment is the part of a template produced by one builder.
type Fragment struct {
	Parameters map[string]Parameter
	Resources  map[string]Resource
	Outputs    map[string]Output
}

func NewFragment() Fragment {
	return Fragment{
		Parameters: make(map[string]Parameter),
		Resources:  make(map[string]Resource),
		Outputs:    make(map[string]Output),
	}
}

func New(description string) *Template {
	return &Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              description,
		Parameters:               make(map[string]Parameter),
		Resources:                make(map[string]Resource),
		Outputs:                  make(map[string]Output),
	}
}

// Merge adds every entry of f. Logical ids are shared between parameters and
// resources, so a clash with either is an error.
func (t *Template) Merge(f Fragment) error {
	for _, id := range SortedKeys(f.Parameters) {
		if err := t.checkFree(id); err != nil {
			return err
		}
		t.Parameters[id] = f.Parameters[id]
	}
	for _, id := range SortedKeys(f.Resources) {
		if err := t.checkFree(id); err != nil {
			return err
		}
		t.Resources[id] = f.Resources[id]
	}
	for _, id := range SortedKeys(f.Outputs) {
		if _, ok := t.Outputs[id]; ok {
			return fmt.Errorf("duplicate output %q", id)
		}
		t.Outputs[id] = f.Outputs[id]
	}
	return nil
}

func (t *Template) checkFree(id string) error {
	if !validLogicalID.MatchString(id) {
		return fmt.Errorf("invalid logical id %q", id)
	}
	if _, ok := t.Resources[id]; ok {
		return fmt.Errorf("duplicate logical id %q", id)
	}
	if _, ok := t.Parameters[id]; ok {
		return fmt.Errorf("duplicate logical id %q", id)
	}
	return nil
}

// ResourceIDs returns the logical ids of all resources, sorted.
func (t *Template) ResourceIDs() []string {
	return SortedKeys(t.Resources)
}

// CountByType is used for summaries, e.g. {"AWS::AppSync::Resolver": 3}.
func (t *Template) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, r := range t.Resources {
		counts[r.Type]++
	}
	return counts
}

var (
	validLogicalID = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	nonAlnum       = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// LogicalID joins parts into a CloudFormation logical id, dropping every
// character that is not alphanumeric.
func LogicalID(parts ...string) string {
	var id string
	for _, p := range parts {
		id += nonAlnum.ReplaceAllString(p, "")
	}
	return id
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
