package oauth1

import "strings"

// Filter selects which parameters take part in a signature.
type Filter func(key string) bool

// All accepts every parameter.
func All() Filter {
	return func(string) bool { return true }
}

// OAuthOnly accepts only oauth_* parameters. Some providers sign nothing
// else on multipart uploads, where the remaining fields are form parts.
func OAuthOnly() Filter {
	return func(key string) bool { return strings.HasPrefix(key, ParamPrefix) }
}

// Except accepts every parameter except the named keys.
func Except(keys ...string) Filter {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	return func(key string) bool { return !skip[key] }
}

// And accepts a parameter only if both f and g accept it.
// A nil filter on either side accepts everything.
func (f Filter) And(g Filter) Filter {
	return func(key string) bool {
		return (f == nil || f(key)) && (g == nil || g(key))
	}
}

// FilterByName resolves a policy name from provider configuration.
// Unknown names resolve to All.
func FilterByName(name string) Filter {
	switch name {
	case "oauth_only":
		return OAuthOnly()
	default:
		return All()
	}
}
