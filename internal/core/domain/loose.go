package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// LooseValue wraps one field of an untyped NLP payload. Every accessor
// reports whether the value could be read as the requested type so callers
// can apply a per-field default.
type LooseValue struct {
	raw     any
	present bool
}

// LooseField looks up key in a decoded JSON object.
func LooseField(object map[string]any, key string) LooseValue {
	if object == nil {
		return LooseValue{}
	}
	raw, ok := object[key]
	return LooseValue{raw: raw, present: ok && raw != nil}
}

func (v LooseValue) Present() bool {
	return v.present
}

// String returns trimmed text. Numbers are rendered in their JSON form.
func (v LooseValue) String() (string, bool) {
	if !v.present {
		return "", false
	}
	switch typed := v.raw.(type) {
	case string:
		return strings.TrimSpace(typed), true
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Int accepts JSON numbers and numeric strings; fractional values are truncated.
func (v LooseValue) Int() (int, bool) {
	f, ok := v.Float()
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func (v LooseValue) Float() (float64, bool) {
	if !v.present {
		return 0, false
	}
	var (
		f   float64
		err error
	)
	switch typed := v.raw.(type) {
	case json.Number:
		f, err = typed.Float64()
	case float64:
		f = typed
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(typed), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var looseDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01",
	"2006",
}

// Date parses calendar dates (YYYY-MM-DD, YYYY-MM, YYYY or an RFC 3339 timestamp).
func (v LooseValue) Date() (*time.Time, bool) {
	text, ok := v.String()
	if !ok || text == "" {
		return nil, false
	}
	for _, layout := range looseDateLayouts {
		parsed, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		return &date, true
	}
	return nil, false
}

func (v LooseValue) Object() (map[string]any, bool) {
	if !v.present {
		return nil, false
	}
	object, ok := v.raw.(map[string]any)
	return object, ok
}

func (v LooseValue) List() ([]any, bool) {
	if !v.present {
		return nil, false
	}
	list, ok := v.raw.([]any)
	return list, ok
}

// JSON re-encodes the value, or returns nil when absent.
func (v LooseValue) JSON() json.RawMessage {
	if !v.present {
		return nil
	}
	encoded, err := json.Marshal(v.raw)
	if err != nil {
		return nil
	}
	return encoded
}
