package api

import (
	"fmt"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/cfn"
)

const CacheID = "APICache"

type CacheOptions struct {
	// Behavior is FULL_REQUEST_CACHING or PER_RESOLVER_CACHING.
	Behavior string
	// TTL in seconds, 1 to 3600.
	TTL int
	// Type is the instance size, e.g. SMALL, MEDIUM, LARGE.
	Type string
}

// Cache describes the API response cache.
func Cache(ref Ref, opts CacheOptions) (cfn.Fragment, error) {
	switch opts.Behavior {
	case "FULL_REQUEST_CACHING", "PER_RESOLVER_CACHING":
	default:
		return cfn.Fragment{}, gqlstack.ConfigError{Field: "cache.behavior", Reason: fmt.Sprintf("unsupported value %q", opts.Behavior)}
	}
	if opts.TTL < 1 || opts.TTL > 3600 {
		return cfn.Fragment{}, gqlstack.ConfigError{Field: "cache.ttl", Reason: fmt.Sprintf("%d is outside 1..3600", opts.TTL)}
	}
	if opts.Type == "" {
		return cfn.Fragment{}, gqlstack.ConfigError{Field: "cache.type", Reason: "must not be empty"}
	}
	frag := cfn.NewFragment()
	frag.Resources[CacheID] = cfn.Resource{
		Type: cfn.TypeAPICache,
		Properties: cfn.Props{
			"ApiCachingBehavior": opts.Behavior,
			"ApiId":              ref.ID(),
			"Ttl":                opts.TTL,
			"Type":               opts.Type,
		},
	}
	return frag, nil
}
