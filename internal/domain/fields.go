package domain

import "encoding/json"

// AsFields converts a typed schema value into its wire field map by a JSON
// round trip, so struct tags stay the single source of truth for field names.
func AsFields(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// FromFields decodes a wire field map into a typed schema value.
func FromFields(fields Fields, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// CloneFields makes an independent copy of a field map. Pending changes
// snapshot fields at enqueue time and must not alias the caller's map.
func CloneFields(fields Fields) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
