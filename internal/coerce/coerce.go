// Package coerce holds the field-level coercion primitives shared by every
// validator. Ingested cell values arrive as strings (CSV), JSON-decoded
// values (API), or already-typed values; the same logical field must coerce
// identically no matter which validator looks at it, so all of the shape
// shifting lives here.
package coerce

import (
	"encoding/json"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
)

// NumStatus is the outcome of a bounded numeric coercion. Malformed and
// OutOfRange are distinct findings upstream.
type NumStatus int

const (
	OK NumStatus = iota
	Malformed
	OutOfRange
)

// IsEmpty reports whether v is absent for required-field purposes: nil or a
// blank string.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// String renders v as a trimmed string. Numbers are formatted without a
// fractional part when integral.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Int coerces v to an integer. Strings are trimmed and parsed; floats must be
// integral.
func Int(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// BoundedInt coerces v to an integer within [min, max] inclusive. The status
// separates unparseable values from parseable-but-out-of-bounds ones.
func BoundedInt(v any, min, max int) (int, NumStatus) {
	n, ok := Int(v)
	if !ok {
		return 0, Malformed
	}
	if n < min || n > max {
		return n, OutOfRange
	}
	return n, OK
}

// StringList coerces v to a list of trimmed, non-empty strings. Accepted
// shapes: a native string slice, a JSON-decoded []any, a JSON-array-encoded
// string, or a comma-separated string.
func StringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []string:
		return compactStrings(t), true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				s = String(item)
				if s == "" {
					return nil, false
				}
			}
			out = append(out, s)
		}
		return compactStrings(out), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, true
		}
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return nil, false
			}
			return compactStrings(arr), true
		}
		return compactStrings(strings.Split(s, ",")), true
	}
	return nil, false
}

// IntList coerces v to a list of integers. Accepted shapes: a native int
// slice, a JSON-decoded []any of integral numbers, a JSON-array-encoded
// string, an inclusive range string "a-b" expanded to consecutive integers,
// a comma-separated string, or a single integer.
func IntList(v any) ([]int, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []int:
		out := make([]int, len(t))
		copy(out, t)
		return out, true
	case []any:
		out := make([]int, 0, len(t))
		for _, item := range t {
			n, ok := Int(item)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	case int, int64, float64, json.Number:
		n, ok := Int(t)
		if !ok {
			return nil, false
		}
		return []int{n}, true
	case string:
		return intListFromString(t)
	}
	return nil, false
}

func intListFromString(s string) ([]int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, false
		}
		return IntList(arr)
	}
	if lo, hi, ok := splitRange(s); ok {
		out := make([]int, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			out = append(out, i)
		}
		return out, true
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// splitRange parses "a-b" with a <= b, both non-negative.
func splitRange(s string) (int, int, bool) {
	i := strings.Index(s, "-")
	if i <= 0 || i == len(s)-1 {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(strings.TrimSpace(s[:i]))
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil {
		return 0, 0, false
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// WellFormedJSON reports whether s parses as JSON. Empty strings pass; the
// AttributesJSON column is optional and blank cells are not malformed.
func WellFormedJSON(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	return json.Valid([]byte(s))
}

// IsEmail reports whether s is a plausible email address.
func IsEmail(s string) bool {
	a, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && a.Address == strings.TrimSpace(s)
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
