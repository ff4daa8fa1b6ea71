// Package models defines data structures shared across the application.
package models

import (
	"fmt"
)

// Response is the envelope Redmine returns for a single issue
// (GET /issues/<id>.json).
type Response struct {
	// Issue is nil when the body carried no "issue" key
	Issue Issue `json:"issue"`
}

// Issue is a Redmine issue record as decoded from JSON. Field names map to
// scalars, to objects carrying a display "name" (status, tracker, priority,
// assigned_to, ...), or, for custom_fields, to a list of field objects.
//
// The record is kept untyped so that fields added on the tracker side can be
// used in message templates without code changes.
type Issue map[string]any

// Subject returns the issue subject and whether it was present.
func (i Issue) Subject() (string, bool) {
	v, ok := i["subject"]
	if !ok || v == nil {
		return "", false
	}
	return scalarString(v), true
}

// IsPrivate reports whether the issue carries a truthy is_private flag.
func (i Issue) IsPrivate() bool {
	return truthy(i["is_private"])
}

// CustomFields returns the issue's custom fields in tracker order. Entries
// that are not objects or lack a name are dropped.
func (i Issue) CustomFields() []CustomField {
	raw, ok := i["custom_fields"].([]any)
	if !ok {
		return nil
	}

	fields := make([]CustomField, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj["name"].(string)
		if !ok {
			continue
		}
		_, multiple := obj["multiple"]
		fields = append(fields, CustomField{
			Name:     name,
			Value:    obj["value"],
			Multiple: multiple,
		})
	}
	return fields
}

// CustomField is a tracker-defined issue attribute.
type CustomField struct {
	// Name is the display name, e.g. "Target Platform Release"
	Name string

	// Value is the raw stored value, usually a string
	Value any

	// Multiple is set when the field carries the "multiple" key; such
	// fields hold a list of values
	Multiple bool
}

// ValueString renders the stored value as text. A nil value renders as "".
func (f CustomField) ValueString() string {
	return scalarString(f.Value)
}

// Empty reports whether the stored value is falsy.
func (f CustomField) Empty() bool {
	return !truthy(f.Value)
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// encoding/json decodes every number as float64
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
