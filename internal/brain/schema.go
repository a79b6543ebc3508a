package brain

import "strings"

// categorySchemas lists the known field keys per category. Classification
// output is stripped to this set at the gate; targeted updates outside it
// are rejected.
var categorySchemas = map[string][]string{
	CategoryPeople:   {"name", "context", "follow_ups", "last_touched"},
	CategoryProjects: {"name", "status", "next_action", "notes", "priority", "due_date"},
	CategoryIdeas:    {"name", "one_liner", "notes"},
	CategoryAdmin:    {"name", "status", "due_date", "notes", "priority"},
}

// SchemaKeys returns the known field keys for a category, in schema order.
func SchemaKeys(category string) []string {
	return categorySchemas[category]
}

// KnownField reports whether key belongs to the category's schema. The
// human-facing spelling ("Next Action") normalizes to the machine key.
func KnownField(category, key string) bool {
	norm := NormalizeFieldKey(key)
	for _, k := range categorySchemas[category] {
		if k == norm {
			return true
		}
	}
	return false
}

// NormalizeFieldKey lowers a field key and joins words with underscores,
// so "Next Action", "next action", and "next_action" are the same key.
func NormalizeFieldKey(key string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(key)))
	return strings.Join(parts, "_")
}

// StripUnknownFields returns a copy of fields containing only keys in the
// category's schema, normalized to machine casing. Unknown keys are
// dropped, not errors: classification output is advisory.
func StripUnknownFields(category string, fields Fields) Fields {
	out := make(Fields, len(fields))
	for key, value := range fields {
		norm := NormalizeFieldKey(key)
		if KnownField(category, norm) {
			out[norm] = value
		}
	}
	return out
}

// ValidateUpdateFields normalizes update keys against the category schema.
// Unlike the gate, an unknown key here is fatal to the call: a targeted
// update naming a field the table does not have is a caller mistake.
func ValidateUpdateFields(category string, fields Fields) (Fields, string) {
	out := make(Fields, len(fields))
	for key, value := range fields {
		norm := NormalizeFieldKey(key)
		if !KnownField(category, norm) {
			return nil, key
		}
		out[norm] = value
	}
	return out, ""
}
