package probe

import (
	"fmt"
	"strings"
)

// AsArray extracts the array payload from a decoded body. REST endpoints
// either return a bare JSON array or nest it under an envelope key (for
// example {"services": [...]}); the catalog annotates each endpoint with
// its envelope, so the empty string means a bare array is expected.
func AsArray(body any, envelope string) ([]any, error) {
	if envelope != "" {
		obj, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object with %q key, got %T", envelope, body)
		}
		body = obj[envelope]
		if body == nil {
			return nil, fmt.Errorf("envelope key %q missing", envelope)
		}
	}
	arr, ok := body.([]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON array, got %T", body)
	}
	return arr, nil
}

// MissingFields returns the names of required keys absent from a decoded
// JSON object. A non-object body reports every key as missing.
func MissingFields(v any, keys ...string) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return keys
	}
	var missing []string
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// CheckShape fails the result when any of the given keys is missing from
// its decoded body. Passing results are returned unchanged.
func CheckShape(r Result, keys ...string) Result {
	if !r.Success {
		return r
	}
	if missing := MissingFields(r.Body, keys...); len(missing) > 0 {
		return r.Fail(KindShape, fmt.Sprintf("missing fields: %s", strings.Join(missing, ", ")))
	}
	return r
}

// CheckElementShape fails the result when any element of its array payload
// is missing one of the given keys. Empty arrays pass.
func CheckElementShape(r Result, envelope string, keys ...string) Result {
	if !r.Success {
		return r
	}
	arr, err := AsArray(r.Body, envelope)
	if err != nil {
		return r.Fail(KindShape, err.Error())
	}
	for i, el := range arr {
		if missing := MissingFields(el, keys...); len(missing) > 0 {
			return r.Fail(KindShape, fmt.Sprintf("element %d missing fields: %s", i, strings.Join(missing, ", ")))
		}
	}
	return r
}

// StringField reads a string-valued key from a decoded JSON object.
func StringField(v any, key string) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj[key].(string)
	return s, ok
}

// BoolField reads a boolean-valued key from a decoded JSON object.
func BoolField(v any, key string) (bool, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return false, false
	}
	b, ok := obj[key].(bool)
	return b, ok
}

// NestedField walks dot-separated object keys, e.g. "user.role".
func NestedField(v any, path string) (any, bool) {
	current := v
	for _, seg := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
