package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is an opaque structured value stored under a key in a collection.
// Values are whatever encoding/json produces: string, float64, bool, nil,
// []any and map[string]any.
type Record map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// RecordKey returns the identifier a record is filed under on import:
// its "id" field, else its "key" field. Numbers are formatted without
// a trailing ".0". Returns "" when neither is usable.
func (r Record) RecordKey() string {
	for _, field := range []string{"id", "key"} {
		switch v := r[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

// ToRecord converts a typed value into a Record through its JSON form.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return rec, nil
}

// FromRecord decodes a Record into dst through its JSON form.
func FromRecord(rec Record, dst any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}
