// Package resolver binds GraphQL fields to data sources. Each FieldBinding
// becomes one AppSync resolver whose mapping templates come from an override,
// from the template catalog, or are omitted for direct-invoke sources.
package resolver

import (
	"fmt"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/api"
	"github.com/acksell/gqlstack/stack/cfn"
)

// Descriptor is the resolved form of one FieldBinding.
type Descriptor struct {
	Field gqlstack.FieldBinding
	// RequestTemplate and ResponseTemplate are nil when omitted.
	RequestTemplate  *string
	ResponseTemplate *string
	// DependsOn lists the logical ids that must be provisioned first:
	// the schema, then the data source if there is one.
	DependsOn []string
}

// LogicalID is the template id of the resolver, e.g. QuerygetTodoResolver.
func (d Descriptor) LogicalID() string {
	return cfn.LogicalID(string(d.Field.Type), d.Field.Field, "Resolver")
}

// Resource renders the descriptor as an AWS::AppSync::Resolver.
func (d Descriptor) Resource(ref api.Ref) cfn.Resource {
	props := cfn.Props{
		"ApiId":     ref.ID(),
		"TypeName":  string(d.Field.Type),
		"FieldName": d.Field.Field,
	}
	if ds := d.Field.DataSource; ds != nil {
		props["DataSourceName"] = ds.SourceName()
	}
	if d.RequestTemplate != nil {
		props["RequestMappingTemplate"] = *d.RequestTemplate
	}
	if d.ResponseTemplate != nil {
		props["ResponseMappingTemplate"] = *d.ResponseTemplate
	}
	if c := d.Field.Caching; c != nil {
		caching := cfn.Props{"Ttl": c.TTL}
		if len(c.Keys) > 0 {
			keys := make([]any, len(c.Keys))
			for i, k := range c.Keys {
				keys[i] = k
			}
			caching["CachingKeys"] = keys
		}
		props["CachingConfig"] = caching
	}
	return cfn.Resource{
		Type:       cfn.TypeResolver,
		Properties: props,
		DependsOn:  append([]string(nil), d.DependsOn...),
	}
}

// Bind resolves the templates of one field. The field is validated but
// duplicates across fields are the caller's concern; see BindAll.
func Bind(ref api.Ref, field gqlstack.FieldBinding, catalog *Catalog) (Descriptor, error) {
	if err := field.Validate(); err != nil {
		return Descriptor{}, err
	}
	req, err := resolveTemplate(field, field.Request, gqlstack.RequestTemplate, catalog)
	if err != nil {
		return Descriptor{}, err
	}
	res, err := resolveTemplate(field, field.Response, gqlstack.ResponseTemplate, catalog)
	if err != nil {
		return Descriptor{}, err
	}

	deps := []string{ref.SchemaID}
	if field.DataSource != nil {
		deps = append(deps, field.DataSource.ResourceID())
	}
	return Descriptor{
		Field:            field,
		RequestTemplate:  req,
		ResponseTemplate: res,
		DependsOn:        deps,
	}, nil
}

func resolveTemplate(field gqlstack.FieldBinding, override *string, kind gqlstack.TemplateKind, catalog *Catalog) (*string, error) {
	if override != nil {
		body := *override
		return &body, nil
	}
	if field.DataSource != nil && field.DataSource.Kind() == gqlstack.DirectInvokeKind {
		return nil, nil
	}
	if catalog == nil {
		catalog = NewCatalog("")
	}
	body, err := catalog.Lookup(field.Type, field.Field, kind)
	if err != nil {
		return nil, err
	}
	return &body, nil
}

// BindAll rejects duplicate bindings and then binds every field. It fails as
// a whole on the first error.
func BindAll(ref api.Ref, fields []gqlstack.FieldBinding, catalog *Catalog) ([]Descriptor, error) {
	if err := gqlstack.CheckUnique(fields); err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(fields))
	for _, f := range fields {
		d, err := Bind(ref, f, catalog)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", f.Key(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Fragment renders descriptors as template resources.
func Fragment(ref api.Ref, descriptors []Descriptor) cfn.Fragment {
	frag := cfn.NewFragment()
	for _, d := range descriptors {
		frag.Resources[d.LogicalID()] = d.Resource(ref)
	}
	return frag
}
