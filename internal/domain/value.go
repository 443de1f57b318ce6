package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Properties is a deal's open-ended property bag. Keys are CRM property
// names; unknown names are simply absent.
type Properties map[string]Value

// Value holds one CRM property value: string, number, null, or a list of
// strings. Accessors never panic on an unexpected shape; they report
// absence instead, so schema drift upstream cannot fail an analysis.
type Value struct {
	raw any
}

func StringValue(s string) Value       { return Value{raw: s} }
func NumberValue(f float64) Value      { return Value{raw: f} }
func NullValue() Value                 { return Value{raw: nil} }
func ListValue(items ...string) Value  { return Value{raw: items} }
func TimeValue(t time.Time) Value      { return Value{raw: t.UTC().Format(time.RFC3339)} }

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil, string, float64:
		v.raw = t
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			if s, ok := it.(string); ok {
				items = append(items, s)
			}
		}
		v.raw = items
	default:
		// Objects and booleans are not part of the value model; keep a
		// string rendering so the value still counts as present.
		v.raw = string(b)
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func (v Value) Raw() any { return v.raw }

func (v Value) IsNull() bool { return v.raw == nil }

// IsEmpty reports whether the value counts as missing for completeness
// scoring: null, empty or whitespace-only string, or empty list.
func (v Value) IsEmpty() bool {
	switch t := v.raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	}
	return false
}

// AsString returns the value as a string. Numbers are formatted; nulls and
// lists report false.
func (v Value) AsString() (string, bool) {
	switch t := v.raw.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

// AsNumber returns the value as a float64, parsing numeric strings.
func (v Value) AsNumber() (float64, bool) {
	switch t := v.raw.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AsTime parses the value as a timestamp: RFC 3339, a bare date, or epoch
// milliseconds (the CRM emits all three depending on endpoint vintage).
func (v Value) AsTime() (time.Time, bool) {
	switch t := v.raw.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}

// AsList returns the value as a string list; scalar strings become a
// one-element list.
func (v Value) AsList() ([]string, bool) {
	switch t := v.raw.(type) {
	case []string:
		return t, true
	case string:
		return []string{t}, true
	}
	return nil, false
}
