// Package waf builds the web ACL that protects the API: a per-IP rate limit
// followed by a rule that only lets allow-listed IPs use the API key.
package waf

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/api"
	"github.com/acksell/gqlstack/stack/cfn"
)

type Action string

const (
	Allow Action = "Allow"
	Block Action = "Block"
)

const (
	FloodProtection = "FloodProtection"
	RestrictAPIKey  = "RestrictAPIKey"

	// RateLimit is the number of requests per IP in the default
	// five minute aggregation window.
	RateLimit    = 2000
	APIKeyHeader = "x-api-key"

	ParameterID   = "allowedIPs"
	IPSetID       = "AllowedIPSet"
	WebACLID      = "WebACL"
	AssociationID = "WebACLAssociation"
)

type Rule struct {
	Name      string
	Priority  int
	Action    Action
	Statement Statement
}

func (r Rule) Props() cfn.Props {
	return cfn.Props{
		"Name":      r.Name,
		"Priority":  r.Priority,
		"Action":    cfn.Props{string(r.Action): cfn.Props{}},
		"Statement": r.Statement.Props(),
		"VisibilityConfig": cfn.Props{
			"CloudWatchMetricsEnabled": true,
			"SampledRequestsEnabled":   true,
			"MetricName":               r.Name,
		},
	}
}

// AllowList is the deploy-time IP allow-list parameter.
type AllowList struct {
	// Default is used when the parameter is not supplied at deploy time.
	Default []string
}

// Policy is the web ACL with its rules in priority order.
type Policy struct {
	API           api.Ref
	DefaultAction Action
	Rules         []Rule
	AllowList     AllowList
}

// Bind builds the policy for the API. The rule order and priorities are
// fixed: FloodProtection is 1, RestrictAPIKey is 2.
func Bind(ref api.Ref, allow AllowList) (Policy, error) {
	if !ref.HasKey() {
		return Policy{}, gqlstack.ConfigError{
			Field:  "authorization",
			Reason: "the API key restriction rule requires API_KEY authorization",
		}
	}
	prefixes, err := ParseAddresses(allow.Default)
	if err != nil {
		return Policy{}, err
	}
	// IPSet addresses must be CIDR ranges, so bare addresses become /32.
	allow.Default = make([]string, len(prefixes))
	for i, p := range prefixes {
		allow.Default[i] = p.String()
	}
	return Policy{
		API:           ref,
		DefaultAction: Allow,
		AllowList:     allow,
		Rules: []Rule{
			{
				Name:      FloodProtection,
				Priority:  1,
				Action:    Block,
				Statement: RateBased{Limit: RateLimit},
			},
			{
				Name:     RestrictAPIKey,
				Priority: 2,
				Action:   Block,
				Statement: And{Statements: []Statement{
					HeaderMatch{Header: APIKeyHeader, SearchString: ref.Key()},
					Not{Statement: IPSetReference{SetID: IPSetID}},
				}},
			},
		},
	}, nil
}

// Fragment renders the allow-list parameter, the IP set, the web ACL and
// its association with the API.
func (p Policy) Fragment() cfn.Fragment {
	frag := cfn.NewFragment()
	frag.Parameters[ParameterID] = cfn.Parameter{
		Type:        "CommaDelimitedList",
		Description: "Your allowed IPs",
		Default:     strings.Join(p.AllowList.Default, ","),
	}
	frag.Resources[IPSetID] = cfn.Resource{
		Type: cfn.TypeIPSet,
		Properties: cfn.Props{
			"Addresses":        cfn.Ref(ParameterID),
			"IPAddressVersion": "IPV4",
			"Scope":            "REGIONAL",
			"Name":             cfn.Sub("${AWS::StackName}-allowed-ips"),
		},
	}

	rules := make([]any, len(p.Rules))
	for i, r := range p.Rules {
		rules[i] = r.Props()
	}
	name := "waf-appsync-" + p.API.IDVar()
	frag.Resources[WebACLID] = cfn.Resource{
		Type: cfn.TypeWebACL,
		Properties: cfn.Props{
			"DefaultAction": cfn.Props{string(p.DefaultAction): cfn.Props{}},
			"Scope":         "REGIONAL",
			"Name":          cfn.Sub(name),
			"Description":   cfn.Sub("ACL for AppSync API - " + p.API.IDVar()),
			"VisibilityConfig": cfn.Props{
				"CloudWatchMetricsEnabled": true,
				"SampledRequestsEnabled":   true,
				"MetricName":               cfn.Sub(name),
			},
			"Rules": rules,
		},
	}
	frag.Resources[AssociationID] = cfn.Resource{
		Type: cfn.TypeWebACLAssociation,
		Properties: cfn.Props{
			"ResourceArn": p.API.Arn(),
			"WebACLArn":   cfn.GetAtt(WebACLID, "Arn"),
		},
	}
	return frag
}

// Verdict is the outcome of evaluating a request.
type Verdict struct {
	Action Action
	// Rule is the name of the matching rule, empty for the default action.
	Rule string
}

// Evaluator runs compiled rules top-down, first match wins.
type Evaluator struct {
	defaultAction Action
	rules         []compiledRule
}

type compiledRule struct {
	name   string
	action Action
	match  predicate
}

// Compile resolves the policy against deploy-time values. A nil AllowedIPs
// means the parameter was not supplied and its default applies. An empty
// allow-list contains no address, so the key rule blocks every key holder.
func (p Policy) Compile(env Env) (*Evaluator, error) {
	if env.AllowedIPs == nil {
		env.AllowedIPs = p.AllowList.Default
	}
	e := &Evaluator{defaultAction: p.DefaultAction}
	for _, r := range p.Rules {
		match, err := r.Statement.compile(env)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %s: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{name: r.Name, action: r.Action, match: match})
	}
	return e, nil
}

func (e *Evaluator) Evaluate(r Request) Verdict {
	for _, rule := range e.rules {
		if rule.match(r) {
			return Verdict{Action: rule.action, Rule: rule.name}
		}
	}
	return Verdict{Action: e.defaultAction}
}

// ParseAddresses parses IPv4 addresses or CIDR ranges. Bare addresses are
// treated as /32.
func ParseAddresses(addrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		var p netip.Prefix
		var err error
		if strings.Contains(a, "/") {
			p, err = netip.ParsePrefix(a)
		} else {
			var addr netip.Addr
			addr, err = netip.ParseAddr(a)
			if err == nil {
				p = netip.PrefixFrom(addr, addr.BitLen())
			}
		}
		if err != nil {
			return nil, gqlstack.ConfigError{Field: "firewall.allowedIPs", Reason: fmt.Sprintf("invalid address %q", a)}
		}
		if !p.Addr().Is4() {
			return nil, gqlstack.ConfigError{Field: "firewall.allowedIPs", Reason: fmt.Sprintf("%q is not IPv4", a)}
		}
		out = append(out, p.Masked())
	}
	return out, nil
}
