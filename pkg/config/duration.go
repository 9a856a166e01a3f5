// Package config loads and validates the minidisplay configuration
// document. Files are YAML or TOML; both are decoded into a generic map and
// parsed strictly so unknown keys and wrong types are reported with the
// stage they belong to.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Millis converts a configured millisecond value into a time.Duration.
// Numbers are milliseconds (fractions allowed, e.g. 16.7); strings are
// either plain numbers or Go duration strings such as "2s" or "1m30s".
func Millis(v any) (time.Duration, error) {
	return scaled(v, time.Millisecond)
}

// Minutes converts a configured minute value into a time.Duration, with
// the same string forms as Millis.
func Minutes(v any) (time.Duration, error) {
	return scaled(v, time.Minute)
}

func scaled(v any, unit time.Duration) (time.Duration, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float64:
		f = n
	case string:
		s := strings.TrimSpace(n)
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			f = parsed
			break
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", n)
		}
		if d < 0 {
			return 0, fmt.Errorf("negative duration %q not allowed", n)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("want number or duration string, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid duration %v", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative duration %v not allowed", f)
	}
	return time.Duration(math.Round(f * float64(unit))), nil
}
