package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Document is a WMStats job summary as stored in the database.
// Only the fields read by the views in this package are decoded.
type Document struct {
	// DocID is the database identifier (_id). It becomes the row id.
	DocID Value `json:"_id,omitempty"`
	Rev   Value `json:"_rev,omitempty"`

	Type     Value `json:"type,omitempty"`
	ID       Value `json:"id,omitempty"`
	Workflow Value `json:"workflow,omitempty"`
	Task     Value `json:"task,omitempty"`
	State    Value `json:"state,omitempty"`
	ExitCode Value `json:"exitcode,omitempty"`
	Site     Value `json:"site,omitempty"`

	Errors ErrorTree `json:"errors,omitempty"`
}

// Decode parses a single JSON object into a Document. Member names match
// exactly and a repeated member keeps its last value.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("document is not a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc := &Document{
		DocID:    Value(fields["_id"]),
		Rev:      Value(fields["_rev"]),
		Type:     Value(fields["type"]),
		ID:       Value(fields["id"]),
		Workflow: Value(fields["workflow"]),
		Task:     Value(fields["task"]),
		State:    Value(fields["state"]),
		ExitCode: Value(fields["exitcode"]),
		Site:     Value(fields["site"]),
	}
	if raw, ok := fields["errors"]; ok {
		_ = doc.Errors.UnmarshalJSON(raw)
	}
	return doc, nil
}

// HasType reports whether the document's type tag is the string name.
func (d *Document) HasType(name string) bool {
	s, ok := d.Type.Str()
	return ok && s == name
}

// ErrorTree maps step name to output name to error record.
// A nil tree and an empty tree are equivalent.
type ErrorTree map[string]map[string]ErrorDetail

// ErrorDetail is one error record. Type is nil when the record has no
// string-valued type field.
type ErrorDetail struct {
	Type *string `json:"type,omitempty"`
}

// Types flattens every error type in the tree and sorts the result.
// Duplicates are kept. Records whose type is null or not a string add
// nothing, where a JavaScript map would push the raw value.
func (t ErrorTree) Types() []string {
	types := []string{}
	for _, outputs := range t {
		for _, detail := range outputs {
			if detail.Type != nil {
				types = append(types, *detail.Type)
			}
		}
	}
	SortStrings(types)
	return types
}

// UnmarshalJSON decodes leniently. Steps and outputs may be JSON objects or
// arrays (arrays are keyed by index); any other value is dropped.
func (t *ErrorTree) UnmarshalJSON(data []byte) error {
	steps, ok := members(data)
	if !ok {
		*t = nil
		return nil
	}

	tree := make(ErrorTree, len(steps))
	for step, raw := range steps {
		outputs, ok := members(raw)
		if !ok {
			continue
		}
		records := make(map[string]ErrorDetail, len(outputs))
		for out, rec := range outputs {
			var detail ErrorDetail
			_ = detail.UnmarshalJSON(rec)
			records[out] = detail
		}
		tree[step] = records
	}
	*t = tree
	return nil
}

// UnmarshalJSON never fails: a record that is not an object, or whose type is
// not a string, decodes with a nil Type.
func (d *ErrorDetail) UnmarshalJSON(data []byte) error {
	d.Type = nil

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil
	}
	raw, ok := fields["type"]
	if !ok {
		return nil
	}
	if s, ok := Value(raw).Str(); ok {
		d.Type = &s
	}
	return nil
}

// members returns the members of a JSON object, or the elements of a JSON
// array keyed by their index.
func members(data []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, false
		}
		return m, true
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, false
		}
		m := make(map[string]json.RawMessage, len(elems))
		for i, elem := range elems {
			m[strconv.Itoa(i)] = elem
		}
		return m, true
	default:
		return nil, false
	}
}
