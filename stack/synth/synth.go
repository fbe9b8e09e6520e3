// Package synth assembles the whole deployment template: identity, API,
// cache, table, function, data sources, resolvers, latency alarms and the
// web ACL. Synthesis is a pure function of its inputs.
package synth

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/acksell/gqlstack/stack/api"
	"github.com/acksell/gqlstack/stack/cfn"
	"github.com/acksell/gqlstack/stack/observe"
	"github.com/acksell/gqlstack/stack/resolver"
	"github.com/acksell/gqlstack/stack/stackcfg"
	"github.com/acksell/gqlstack/stack/waf"
)

// Output ids.
const (
	OutputRegion         = "StackRegion"
	OutputAPIID          = "GraphQLAPIID"
	OutputAPIURL         = "GraphQLAPIURL"
	OutputAPIKey         = "GraphQLAPIKey"
	OutputTable          = "Table"
	OutputFunction       = "Function"
	OutputACLRef         = "ACLRef"
	OutputACLAssociation = "ACLAssociation"

	// NoAPIKey is the GraphQLAPIKey output when the API has no key.
	NoAPIKey = "n/a"
)

// Inputs are the files a synthesis reads, already loaded.
type Inputs struct {
	Config stackcfg.Config
	// Schema is the GraphQL schema definition, inlined as is.
	Schema string
	// FunctionCode is the inline source of the function.
	FunctionCode string
	Catalog      *resolver.Catalog
}

// Result is the synthesized template with the intermediate descriptors.
type Result struct {
	Template  *cfn.Template
	Order     []string
	Resolvers []resolver.Descriptor
	Alarms    []observe.Pair
	// Firewall is nil when the web ACL is disabled.
	Firewall *waf.Policy
}

// Synthesize builds the template. Nothing is partially returned on error.
func Synthesize(in Inputs, log logrus.FieldLogger) (*Result, error) {
	cfg := in.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkInlineCode(in.FunctionCode); err != nil {
		return nil, err
	}
	sources, err := cfg.Sources()
	if err != nil {
		return nil, err
	}
	fields, err := cfg.Bindings()
	if err != nil {
		return nil, err
	}
	tableDef, err := cfg.TableDefinition()
	if err != nil {
		return nil, err
	}
	auth, err := authorization(cfg.API)
	if err != nil {
		return nil, err
	}

	t := cfn.New(cfg.Description)
	merge := func(stage string, frag cfn.Fragment) error {
		if err := t.Merge(frag); err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
		log.WithFields(logrus.Fields{"stage": stage, "resources": len(frag.Resources)}).Debug("merged fragment")
		return nil
	}

	if err := merge("identity", identity(cfg.UserPool.Name)); err != nil {
		return nil, err
	}

	ref, apiFrag, err := api.Build(api.Options{
		Name:                  cfg.API.Name,
		Schema:                in.Schema,
		Authorization:         auth,
		FieldLogLevel:         cfg.API.FieldLogLevel,
		ExcludeVerboseContent: cfg.API.ExcludeVerboseContent,
		XRay:                  cfg.API.XRayEnabled(),
	})
	if err != nil {
		return nil, err
	}
	if err := merge("api", apiFrag); err != nil {
		return nil, err
	}

	cacheFrag, err := api.Cache(ref, api.CacheOptions{
		Behavior: cfg.Cache.Behavior,
		TTL:      cfg.Cache.TTL,
		Type:     cfg.Cache.Type,
	})
	if err != nil {
		return nil, err
	}
	if err := merge("cache", cacheFrag); err != nil {
		return nil, err
	}

	if err := merge("table", tableFragment(tableDef, cfg.Table)); err != nil {
		return nil, err
	}
	if err := merge("function", function(cfg.Function, in.FunctionCode)); err != nil {
		return nil, err
	}
	dsFrag, err := dataSources(ref, cfg.DataSources, sources)
	if err != nil {
		return nil, err
	}
	if err := merge("data sources", dsFrag); err != nil {
		return nil, err
	}

	descriptors, err := resolver.BindAll(ref, fields, in.Catalog)
	if err != nil {
		return nil, err
	}
	if err := merge("resolvers", resolver.Fragment(ref, descriptors)); err != nil {
		return nil, err
	}

	pairs, err := observe.Bind(ref, fields)
	if err != nil {
		return nil, err
	}
	retention := cfg.Logs.RetentionDays
	if retention == 0 {
		retention = observe.LogRetentionDays
	}
	if err := merge("observability", observe.Fragment(ref, pairs, retention)); err != nil {
		return nil, err
	}

	var policy *waf.Policy
	if !cfg.Firewall.Disabled {
		p, err := waf.Bind(ref, waf.AllowList{Default: cfg.Firewall.AllowedIPs})
		if err != nil {
			return nil, err
		}
		if err := merge("firewall", p.Fragment()); err != nil {
			return nil, err
		}
		policy = &p
	}

	if err := merge("outputs", outputs(ref, policy != nil)); err != nil {
		return nil, err
	}

	order, err := resolveGraph(t)
	if err != nil {
		return nil, fmt.Errorf("validating resource graph: %w", err)
	}
	log.WithFields(logrus.Fields{
		"resources": len(t.Resources),
		"resolvers": len(descriptors),
		"alarms":    len(pairs),
	}).Info("synthesized template")

	return &Result{
		Template:  t,
		Order:     order,
		Resolvers: descriptors,
		Alarms:    pairs,
		Firewall:  policy,
	}, nil
}

func authorization(cfg stackcfg.API) (api.Authorization, error) {
	def, err := api.ParseAuthMode(cfg.DefaultAuth)
	if err != nil {
		return api.Authorization{}, err
	}
	auth := api.Authorization{Default: def}
	for _, s := range cfg.AdditionalAuth {
		m, err := api.ParseAuthMode(s)
		if err != nil {
			return api.Authorization{}, err
		}
		auth.Additional = append(auth.Additional, m)
	}
	for _, m := range append([]api.AuthMode{def}, auth.Additional...) {
		if m == api.AuthUserPool {
			auth.UserPoolID = UserPoolID
		}
	}
	return auth, nil
}

func outputs(ref api.Ref, firewall bool) cfn.Fragment {
	frag := cfn.NewFragment()
	frag.Outputs[OutputRegion] = cfn.Output{Value: cfn.Ref(cfn.AWSRegion)}
	frag.Outputs[OutputAPIID] = cfn.Output{Value: ref.ID()}
	frag.Outputs[OutputAPIURL] = cfn.Output{Value: ref.URL()}
	if key := ref.Key(); key != nil {
		frag.Outputs[OutputAPIKey] = cfn.Output{Value: key}
	} else {
		frag.Outputs[OutputAPIKey] = cfn.Output{Value: NoAPIKey}
	}
	frag.Outputs[OutputTable] = cfn.Output{Value: cfn.Ref(TableID)}
	frag.Outputs[OutputFunction] = cfn.Output{Value: cfn.Ref(FunctionID)}
	if firewall {
		frag.Outputs[OutputACLRef] = cfn.Output{Value: cfn.Ref(waf.WebACLID)}
		frag.Outputs[OutputACLAssociation] = cfn.Output{Value: cfn.Ref(waf.AssociationID)}
	}
	return frag
}
