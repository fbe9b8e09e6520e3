package waf

import (
	"net/netip"
	"strings"

	"github.com/acksell/gqlstack/stack/cfn"
)

// Request is what a compiled rule looks at.
type Request struct {
	SourceIP string
	Headers  map[string]string
	// WindowCount is the number of requests seen from SourceIP in the
	// current aggregation window, including this one.
	WindowCount int
}

func (r Request) header(name string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Env supplies the deploy-time values that the template only references.
type Env struct {
	APIKey     string
	AllowedIPs []string
}

// Statement is one WAF match statement.
type Statement interface {
	// Props renders the statement in CloudFormation form.
	Props() cfn.Props
	compile(env Env) (predicate, error)
}

type predicate func(Request) bool

// RateBased matches when a single IP exceeds Limit requests per window.
type RateBased struct {
	Limit int
}

func (s RateBased) Props() cfn.Props {
	return cfn.Props{"RateBasedStatement": cfn.Props{
		"AggregateKeyType": "IP",
		"Limit":            s.Limit,
	}}
}

func (s RateBased) compile(Env) (predicate, error) {
	return func(r Request) bool { return r.WindowCount > s.Limit }, nil
}

// HeaderMatch matches a header exactly after lower-casing it.
type HeaderMatch struct {
	Header string
	// SearchString is the value in the template, usually an intrinsic.
	SearchString any
}

func (s HeaderMatch) Props() cfn.Props {
	return cfn.Props{"ByteMatchStatement": cfn.Props{
		"FieldToMatch":         cfn.Props{"SingleHeader": cfn.Props{"Name": s.Header}},
		"PositionalConstraint": "EXACTLY",
		"SearchString":         s.SearchString,
		"TextTransformations":  []any{cfn.Props{"Priority": 1, "Type": "LOWERCASE"}},
	}}
}

// The search string is the API key, taken from env.
func (s HeaderMatch) compile(env Env) (predicate, error) {
	want := strings.ToLower(env.APIKey)
	return func(r Request) bool {
		v, ok := r.header(s.Header)
		return ok && strings.ToLower(v) == want
	}, nil
}

// IPSetReference matches when the source IP is inside the referenced set.
type IPSetReference struct {
	SetID string
}

func (s IPSetReference) Props() cfn.Props {
	return cfn.Props{"IPSetReferenceStatement": cfn.Props{
		"Arn": cfn.GetAtt(s.SetID, "Arn"),
	}}
}

func (s IPSetReference) compile(env Env) (predicate, error) {
	prefixes, err := ParseAddresses(env.AllowedIPs)
	if err != nil {
		return nil, err
	}
	return func(r Request) bool {
		addr, err := netip.ParseAddr(r.SourceIP)
		if err != nil {
			return false
		}
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}, nil
}

type And struct {
	Statements []Statement
}

func (s And) Props() cfn.Props {
	stmts := make([]any, len(s.Statements))
	for i, st := range s.Statements {
		stmts[i] = st.Props()
	}
	return cfn.Props{"AndStatement": cfn.Props{"Statements": stmts}}
}

func (s And) compile(env Env) (predicate, error) {
	preds := make([]predicate, len(s.Statements))
	for i, st := range s.Statements {
		p, err := st.compile(env)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return func(r Request) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}, nil
}

type Not struct {
	Statement Statement
}

func (s Not) Props() cfn.Props {
	return cfn.Props{"NotStatement": cfn.Props{"Statement": s.Statement.Props()}}
}

func (s Not) compile(env Env) (predicate, error) {
	p, err := s.Statement.compile(env)
	if err != nil {
		return nil, err
	}
	return func(r Request) bool { return !p(r) }, nil
}
