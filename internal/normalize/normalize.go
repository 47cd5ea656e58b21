// Package normalize coerces loosely typed request values into canonical Go
// types. Every function here is total: it never panics and never fails.
package normalize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var truthy = map[string]struct{}{
	"true": {},
	"1":    {},
	"yes":  {},
}

// Bool maps a bool-like value to a bool.
func Bool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		_, ok := truthy[strings.ToLower(val)]
		return ok
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	default:
		return false
	}
}

// List maps a list-like value to a slice. Strings are tried as a JSON array,
// then as a bracketed flow sequence of quoted strings or decimal numbers
// such as "['a', 'b']", and otherwise become a single element.
func List(v any) []any {
	switch val := v.(type) {
	case nil:
		return []any{}
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case string:
		return parseList(val)
	default:
		return []any{v}
	}
}

func parseList(s string) []any {
	s = strings.TrimSpace(s)
	if s == "" {
		return []any{}
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		if list, ok := parsed.([]any); ok {
			return list
		}
	}

	if list, ok := parseFlowList(s); ok {
		return list
	}

	return []any{s}
}

var decimal = regexp.MustCompile(`^[-+]?[0-9]+(\.[0-9]*)?([eE][-+]?[0-9]+)?$`)

// parseFlowList accepts only "[...]" with quoted or decimal items. Bare
// words, block sequences and YAML-specific scalars are rejected.
func parseFlowList(s string) ([]any, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) != 1 {
		return nil, false
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode || seq.Style&yaml.FlowStyle == 0 {
		return nil, false
	}

	out := make([]any, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, false
		}
		switch {
		case item.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0:
			out = append(out, item.Value)
		case decimal.MatchString(item.Value):
			f, err := strconv.ParseFloat(item.Value, 64)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		default:
			return nil, false
		}
	}
	return out, true
}

// String renders a scalar the way a client most likely meant it: numbers
// without exponent or trailing zeros, nil as the empty string.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func Strings(list []any) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, String(item))
	}
	return out
}
