package request

import (
	"maps"
	"net/url"
	"sort"
)

// Params is a request parameter set. Order is irrelevant.
type Params map[string]string

// Clone returns a shallow copy. A nil Params clones to an empty map.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Keys returns the parameter names, sorted.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values converts p to url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Encode returns the application/x-www-form-urlencoded form of p, sorted by key.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// DecodeForm parses an application/x-www-form-urlencoded body.
// When a key repeats, the first value wins.
func DecodeForm(body []byte) (Params, error) {
	v, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	p := make(Params, len(v))
	for k, vs := range v {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p, nil
}
