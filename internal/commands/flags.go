package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/weibokit/weibo/internal/output"
	"github.com/weibokit/weibo/pkg/weibo/request"
)

// paramsValue is a repeatable key=value flag collecting call parameters.
type paramsValue struct {
	params request.Params
}

var _ pflag.Value = (*paramsValue)(nil)

func newParamsValue() *paramsValue {
	return &paramsValue{params: request.Params{}}
}

func (p *paramsValue) Set(s string) error {
	k, v, err := splitParam(s)
	if err != nil {
		return err
	}
	p.params[k] = v
	return nil
}

func (p *paramsValue) String() string {
	keys := p.params.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p.params[k]
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (p *paramsValue) Type() string {
	return "key=value"
}

// splitParam parses "key=value". The value may be empty or contain "=".
func splitParam(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return strings.TrimSpace(k), v, nil
}

// parseKeyValues merges positional key=value arguments into params.
// Positional arguments override flag values with the same key.
func parseKeyValues(params request.Params, args []string) (request.Params, error) {
	out := params.Clone()
	if out == nil {
		out = request.Params{}
	}
	for _, arg := range args {
		k, v, err := splitParam(arg)
		if err != nil {
			return nil, output.ErrUsageHint(err.Error(), "Parameters are given as key=value, e.g. status=hello")
		}
		out[k] = v
	}
	return out, nil
}

// flagNames lists the flag names defined on fs, sorted.
func flagNames(fs *pflag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *pflag.Flag) {
		names = append(names, f.Name)
	})
	sort.Strings(names)
	return names
}
