// Package envelope interprets provider responses. Every provider wraps
// failures in the same {error_code, error, request} shape, sometimes with
// HTTP 200, so status alone does not decide success.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
)

// Interpret turns a raw response into a Value or a typed error.
func Interpret(status int, reason string, body []byte) (Value, error) {
	if status != 200 {
		v, err := Parse(body)
		if err == nil {
			if _, ok := v.Lookup("error_code"); ok {
				return Value{}, apiError(status, v)
			}
		}
		return Value{}, apierr.ErrTransport(status, reason, body)
	}

	v, err := Parse(body)
	if err != nil {
		e := apierr.ErrTransport(status, reason, body)
		e.Cause = err
		return Value{}, e
	}
	if v.Kind() == Object && v.Get("error_code").Truthy() {
		return Value{}, apiError(status, v)
	}
	return v, nil
}

// Parse decodes body as UTF-8 JSON. A leading BOM is dropped and invalid
// UTF-8 is replaced. Numbers keep their literal text.
func Parse(body []byte) (Value, error) {
	text, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), body)
	if err != nil {
		return Value{}, fmt.Errorf("decoding body: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, fmt.Errorf("parsing json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("parsing json: trailing data after value")
	}
	return Value{v: v}, nil
}

func apiError(status int, v Value) *apierr.Error {
	return apierr.ErrAPI(status,
		v.Get("error_code").Str(),
		v.Get("request").Str(),
		v.Get("error").Str())
}
