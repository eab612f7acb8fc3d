package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Feed key priority per physical attribute. RESO-style keys first.
var (
	bedsKeys  = []string{"BedroomsTotal", "BedroomsTotalInteger", "BedsTotal"}
	bathsKeys = []string{"BathroomsTotalInteger", "BathroomsTotal", "BathsTotal"}
	sqftKeys  = []string{"LivingArea", "BuildingAreaTotal", "LivingAreaSquareFeet"}
	yearKeys  = []string{"YearBuilt"}
)

// Beds resolves the bedroom count. Structured data wins; otherwise the raw
// payload is probed in key priority order. A nil result means unknown —
// callers must not render it as zero.
func Beds(structured *float64, raw map[string]any) *float64 {
	return deriveNumeric(structured, raw, bedsKeys)
}

func Baths(structured *float64, raw map[string]any) *float64 {
	return deriveNumeric(structured, raw, bathsKeys)
}

func Sqft(structured *float64, raw map[string]any) *float64 {
	return deriveNumeric(structured, raw, sqftKeys)
}

func YearBuilt(structured *float64, raw map[string]any) *float64 {
	return deriveNumeric(structured, raw, yearKeys)
}

func deriveNumeric(structured *float64, raw map[string]any, keys []string) *float64 {
	if structured != nil {
		return structured
	}
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			return &f
		}
		// Unparseable values are skipped, never treated as zero.
	}
	return nil
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// rawString reads a payload field as trimmed text, tolerating feeds that
// send numbers where strings are expected (street numbers, units).
func rawString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return fmt.Sprintf("%g", s)
	}
	return ""
}
