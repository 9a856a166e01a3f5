package applet

import (
	"fmt"
	"math"
)

// Options are the free-form per-stage settings handed to a Factory. Values
// come straight from the YAML or TOML decoder, so numbers may be int,
// int64 or float64.
type Options map[string]any

// String returns the string at key, or def when absent.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %s: want string, got %T", key, v)
	}
	return s, nil
}

// Float returns the number at key, or def when absent.
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("option %s: want number, got %T", key, v)
}

// Int returns the integer at key, or def when absent. Floats must be whole.
func (o Options) Int(key string, def int) (int, error) {
	f, err := o.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("option %s: want integer, got %v", key, f)
	}
	return int(f), nil
}

// Strings returns the list of strings at key, or def when absent. A single
// string is accepted as a one-element list.
func (o Options) Strings(key string, def []string) ([]string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	switch l := v.(type) {
	case string:
		return []string{l}, nil
	case []string:
		return l, nil
	case []any:
		out := make([]string, 0, len(l))
		for i, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("option %s[%d]: want string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("option %s: want list of strings, got %T", key, v)
}
