package untis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawObject is a decoded JSON object whose field types nothing may be
// assumed about. Servers of different generations send ids as numbers or
// strings and dates in several shapes, so every accessor is fallible.
type RawObject map[string]any

// DecodeRaw parses a JSON document keeping numbers as json.Number so that
// large ids survive without float rounding.
func DecodeRaw(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &DecodeError{What: "json document", Err: err}
	}

	return v, nil
}

// AsObject narrows a decoded value to an object.
func AsObject(v any) (RawObject, bool) {
	obj, ok := v.(map[string]any)

	return RawObject(obj), ok
}

// AsArray narrows a decoded value to an array.
func AsArray(v any) ([]any, bool) {
	arr, ok := v.([]any)

	return arr, ok
}

func (o RawObject) Has(key string) bool {
	_, ok := o[key]

	return ok
}

func (o RawObject) Object(key string) (RawObject, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}

	return AsObject(v)
}

func (o RawObject) Array(key string) ([]any, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}

	return AsArray(v)
}

func (o RawObject) Int64(key string) (int64, bool) {
	v, ok := o[key]
	if !ok {
		return 0, false
	}

	return Int64From(v)
}

func (o RawObject) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok {
		return "", false
	}

	return StringFrom(v)
}

func (o RawObject) Bool(key string) (bool, bool) {
	v, ok := o[key]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	case json.Number:
		if n, err := b.Int64(); err == nil {
			return n != 0, true
		}
	}

	return false, false
}

// FirstString returns the first present, non-empty string among the keys.
func (o RawObject) FirstString(keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := o.String(key); ok && s != "" {
			return s, true
		}
	}

	return "", false
}

// FirstInt64 returns the first key that yields an integer.
func (o RawObject) FirstInt64(keys ...string) (int64, bool) {
	for _, key := range keys {
		if n, ok := o.Int64(key); ok {
			return n, true
		}
	}

	return 0, false
}

// Int64From coerces numbers and numeric strings to int64.
func Int64From(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}

	return 0, false
}

// StringFrom coerces strings and numbers to their string form.
func StringFrom(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}

	return "", false
}

// NormalizedDateString coerces a date value (number or string, separators
// allowed) to the canonical 8-digit yyyymmdd form.
func NormalizedDateString(v any) (string, bool) {
	s, ok := StringFrom(v)
	if !ok {
		return "", false
	}
	digits := keepDigits(s)
	if digits == "" || len(digits) > 8 {
		return "", false
	}

	return leftPad(digits, 8), true
}

// NormalizedTimeString coerces a wall-clock value (number or string,
// separators allowed) to the canonical 4-digit HHmm form.
func NormalizedTimeString(v any) (string, bool) {
	s, ok := StringFrom(v)
	if !ok {
		return "", false
	}
	digits := keepDigits(s)
	if digits == "" || len(digits) > 4 {
		return "", false
	}

	return leftPad(digits, 4), true
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}

	return s
}
