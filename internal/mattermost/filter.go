package mattermost

import (
	"fmt"
	"net/url"
	"reflect"

	"mmhook/internal/types"
)

// IsAbsoluteURI reports whether raw parses as a URI with both a scheme and a
// host. Relative ("relative/path") and scheme-relative ("//host/path") URIs
// are not absolute.
func IsAbsoluteURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Hostname() != ""
}

// FilterURI validates a URI-bearing value and returns its string form
// unchanged. It accepts a raw string or a pre-parsed *url.URL / url.URL.
// Any other type is a validation_invalid_type error; a non-absolute URI is a
// validation_invalid_uri error. Both name field in their details.
func FilterURI(v any, field string) (string, error) {
	var raw string
	switch u := v.(type) {
	case string:
		raw = u
	case *url.URL:
		if u == nil {
			return "", typeError(field, "a URI", v)
		}
		raw = u.String()
	case url.URL:
		raw = u.String()
	default:
		return "", typeError(field, "a URI", v)
	}

	if !IsAbsoluteURI(raw) {
		return "", types.NewFieldError(
			types.ErrCodeValidationInvalidURI,
			field,
			fmt.Sprintf("%s must be an absolute URI with a scheme and a host, got %q", field, raw),
		)
	}
	return raw, nil
}

// FilterString accepts only text. It does not trim.
func FilterString(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError(field, "text", v)
	}
	return s, nil
}

// IsEmptyValue reports whether v is dropped from a JSON projection: nil, an
// empty string, or an empty slice, array or map. Booleans and numbers are
// never empty.
func IsEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// compact returns a copy of m without the keys whose values are empty.
func compact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !IsEmptyValue(v) {
			out[k] = v
		}
	}
	return out
}

func typeError(field, want string, got any) *types.AppError {
	return types.NewFieldError(
		types.ErrCodeValidationInvalidType,
		field,
		fmt.Sprintf("%s must be %s, got %T", field, want, got),
	)
}
