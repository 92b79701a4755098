package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/itchyny/gojq"
)

// ApplyJQ runs a jq expression over data and collects every result.
func ApplyJQ(expr string, data any) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("Invalid --jq expression: %v", err), expr)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("Invalid --jq expression: %v", err), expr)
	}

	var results []any
	iter := code.Run(jqValue(data))
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if halt, ok := err.(*gojq.HaltError); ok && halt.Value() == nil {
				break
			}
			return nil, ErrUsage(fmt.Sprintf("--jq: %v", err))
		}
		results = append(results, v)
	}
	return results, nil
}

// jqValue converts data into the value set gojq accepts. Numbers decoded with
// UseNumber become int or *big.Int so that 64-bit status ids survive.
func jqValue(data any) any {
	switch v := data.(type) {
	case nil, bool, string, int, float64:
		return v
	case json.Number:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return int(n)
		}
		if b, ok := new(big.Int).SetString(string(v), 10); ok {
			return b
		}
		f, _ := v.Float64()
		return f
	case int64:
		return int(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = jqValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = jqValue(item)
		}
		return out
	default:
		return roundTrip(v)
	}
}

func roundTrip(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return jqValue(out)
}
