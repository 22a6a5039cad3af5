package tineye

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// object is a decoded JSON object whose members are decoded one by one with
// explicit defaulting rules instead of struct-tag mapping.
type object map[string]json.RawMessage

var (
	errNotObject = errors.New("expected a JSON object")
	errNotArray  = errors.New("expected a JSON array")
	errNotNumber = errors.New("expected a number or numeric string")
	errNotString = errors.New("expected a string")
	errNotBool   = errors.New("expected a boolean")
)

// Layouts accepted for date fields.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05 UTC",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeObject decodes raw as an object. A JSON null yields an empty object.
func decodeObject(raw json.RawMessage) (object, error) {
	if isNull(raw) {
		return object{}, nil
	}
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, errNotObject
	}
	if o == nil {
		return object{}, nil
	}
	return o, nil
}

// has reports whether key is present with a non-null value.
func (o object) has(key string) bool {
	raw, ok := o[key]
	return ok && !isNull(raw)
}

func fieldErr(key string, err error) error {
	return fmt.Errorf("field %q: %w", key, err)
}

// str returns the string at key. Absent or null yields "".
// Numbers and booleans are accepted and rendered as their JSON text.
func (o object) str(key string) (string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", nil
	}
	s, err := rawString(raw)
	if err != nil {
		return "", fieldErr(key, err)
	}
	return s, nil
}

func rawString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", errNotString
		}
		return s, nil
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return "", errNotString
	default:
		return string(trimmed), nil
	}
}

// float returns the number at key. Absent, null or "" yields 0.
func (o object) float(key string) (float64, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return 0, nil
	}
	f, err := rawFloat(raw)
	if err != nil {
		return 0, fieldErr(key, err)
	}
	return f, nil
}

func rawFloat(raw json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	text := string(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, errNotNumber
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, nil
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return 0, errNotNumber
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	return f, nil
}

// integer returns the integer at key with the same rules as float.
// Fractional values are truncated toward zero.
func (o object) integer(key string) (int64, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return 0, nil
	}
	n, err := rawInt(raw)
	if err != nil {
		return 0, fieldErr(key, err)
	}
	return n, nil
}

func rawInt(raw json.RawMessage) (int64, error) {
	f, err := rawFloat(raw)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// boolean returns the boolean at key. Absent or null yields false.
// "true"/"false" strings and 0/1 numbers are accepted.
func (o object) boolean(key string) (bool, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return false, nil
	}
	s, err := rawString(raw)
	if err != nil {
		return false, fieldErr(key, errNotBool)
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fieldErr(key, errNotBool)
	}
	return b, nil
}

// array returns the elements at key. Absent or null yields an empty slice.
func (o object) array(key string) ([]json.RawMessage, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return []json.RawMessage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fieldErr(key, errNotArray)
	}
	return items, nil
}

// stringList returns the string elements at key.
func (o object) stringList(key string) ([]string, error) {
	items, err := o.array(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, err := rawString(item)
		if err != nil {
			return nil, fieldErr(fmt.Sprintf("%s[%d]", key, i), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// date returns the time at key. Absent, null or "" yields the zero time.
func (o object) date(key string) (time.Time, error) {
	s, err := o.str(key)
	if err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fieldErr(key, fmt.Errorf("unrecognized date %q", s))
}
