package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

func asObject(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asList(v interface{}) ([]interface{}, bool) {
	l, ok := v.([]interface{})
	return l, ok
}

// str renders a scalar as a trimmed string. Non-scalars render empty.
func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// firstStr returns the first non-empty string among keys of m.
func firstStr(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// num parses numbers and numeric strings. Absent or empty values are 0, true.
// NaN and infinities are not numbers here.
func num(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return t, finite(t)
	case json.Number:
		f, err := t.Float64()
		return f, err == nil && finite(f)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && finite(f)
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// firstKey returns the value of the first key present in m.
func firstKey(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// strList accepts a JSON array of strings or a comma separated string.
func strList(v interface{}) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	case []interface{}:
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func joinName(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// setValue parses raw into l.Value, recording a problem when it is not numeric.
func setValue(l *CanonicalLead, raw interface{}) {
	v, ok := num(raw)
	if !ok {
		l.Problems = append(l.Problems, "value must be a number")
		return
	}
	l.Value = v
}

// isScalar reports whether v is a JSON string, number or bool.
func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, float64, json.Number, bool:
		return true
	}
	return false
}
