package synth

import (
	"fmt"
	"sort"

	"github.com/acksell/gqlstack/stack/cfn"
	"github.com/acksell/gqlstack/stack/dag"
)

// resolveGraph builds the dependency graph of t from explicit DependsOn
// entries and the intrinsics in resource properties. It rejects unknown
// targets and cycles, normalizes every DependsOn list and returns the
// provisioning order.
func resolveGraph(t *cfn.Template) ([]string, error) {
	g := dag.New()
	for _, id := range cfn.SortedKeys(t.Parameters) {
		g.AddNode(id)
	}
	for _, id := range t.ResourceIDs() {
		g.AddNode(id)
	}

	for _, id := range t.ResourceIDs() {
		r := t.Resources[id]
		for _, dep := range r.DependsOn {
			if _, ok := t.Resources[dep]; !ok {
				if _, isParam := t.Parameters[dep]; isParam {
					return nil, fmt.Errorf("%s: DependsOn cannot name parameter %s", id, dep)
				}
				return nil, dag.MissingNodeError{From: id, To: dep}
			}
			if err := g.AddEdge(id, dep); err != nil {
				return nil, err
			}
		}
		for _, ref := range cfn.References(r.Properties) {
			if err := g.AddEdge(id, ref); err != nil {
				return nil, err
			}
		}
		t.Resources[id] = withSortedDependsOn(r)
	}

	for _, id := range cfn.SortedKeys(t.Outputs) {
		for _, ref := range cfn.References(t.Outputs[id].Value) {
			if !g.Has(ref) {
				return nil, fmt.Errorf("output %s: %w", id, dag.MissingNodeError{From: id, To: ref})
			}
		}
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	resources := order[:0]
	for _, id := range order {
		if _, ok := t.Resources[id]; ok {
			resources = append(resources, id)
		}
	}
	return resources, nil
}

func withSortedDependsOn(r cfn.Resource) cfn.Resource {
	if len(r.DependsOn) == 0 {
		r.DependsOn = nil
		return r
	}
	seen := make(map[string]bool, len(r.DependsOn))
	deps := make([]string, 0, len(r.DependsOn))
	for _, d := range r.DependsOn {
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}
	sort.Strings(deps)
	r.DependsOn = deps
	return r
}
