// Package artist persists finalized artist profiles in SQLite.
package artist

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when no artist has the requested ID.
var ErrNotFound = errors.New("artist not found")

// MarshalStringSlice encodes a string slice as a JSON array string.
func MarshalStringSlice(s []string) string {
	if s == nil {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

// UnmarshalStringSlice decodes a JSON array string into a string slice.
func UnmarshalStringSlice(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}

// marshalJSON encodes v as a JSON column value, using empty when v is nil
// or fails to encode.
func marshalJSON(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}

// unmarshalJSON decodes a JSON column into dst. Malformed values leave dst
// untouched.
func unmarshalJSON(data string, dst any) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), dst)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
