package advice

import "encoding/json"

// Outcome is the tagged result of one advice request. Exactly one of the
// concrete types Result, Clarify, or Error is produced per call.
type Outcome interface {
	// Kind names the variant: "result", "clarify", or "error".
	Kind() string

	outcome()
}

// Result carries the structured reply: extracted interests, the
// interest-to-career mapping, and per-path explanations. Fields the model
// omitted stay nil. Values are kept as raw JSON so the view can fall back
// to rendering the original text when a field does not have the expected
// shape.
type Result struct {
	Interests    json.RawMessage `json:"interests,omitempty"`
	Mapping      json.RawMessage `json:"mapping,omitempty"`
	Explanations json.RawMessage `json:"explanations,omitempty"`
}

// Clarify carries a follow-up question asked by the model when it cannot
// yet map the input to interests.
type Clarify struct {
	Question string
}

// Error carries a user-visible description of a transport or upstream
// failure.
type Error struct {
	Message string
}

func (Result) Kind() string  { return "result" }
func (Clarify) Kind() string { return "clarify" }
func (Error) Kind() string   { return "error" }

func (Result) outcome()  {}
func (Clarify) outcome() {}
func (Error) outcome()   {}

// InterestList returns the interests as display strings. ok is false when
// the field is absent or not a JSON array; callers then render the raw
// value instead.
func (r Result) InterestList() ([]string, bool) {
	if !present(r.Interests) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(r.Interests, &items); err != nil {
		return nil, false
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = display(item)
	}
	return out, true
}

// MappingPairs returns the interest-to-path mapping as display strings.
// ok is false when the field is absent or not a JSON object.
func (r Result) MappingPairs() (map[string]string, bool) {
	return stringPairs(r.Mapping)
}

// ExplanationPairs returns the path-to-explanation mapping as display
// strings. ok is false when the field is absent or not a JSON object.
func (r Result) ExplanationPairs() (map[string]string, bool) {
	return stringPairs(r.Explanations)
}

func stringPairs(raw json.RawMessage) (map[string]string, bool) {
	if !present(raw) {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = display(v)
	}
	return out, true
}

// present reports whether a reply field carries a usable value. A literal
// null counts as absent so it falls through to raw rendering.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// display renders a single JSON value for the page: strings lose their
// quotes, everything else stays as JSON text.
func display(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
