package advice

import (
	"encoding/json"
	"strings"
)

// ParseReply reduces the model's reply text to an Outcome. The reply is
// expected to be JSON in one of the two shapes named by the system prompt,
// but models drift: fenced code blocks are unwrapped, and anything that
// still fails to parse as a JSON object is treated as a clarifying
// question carrying the raw text.
func ParseReply(content string) Outcome {
	// The fallback question is fixed before any parse attempt, so a parse
	// failure can never reference an unset value.
	trimmed := strings.TrimSpace(content)
	payload := stripFence(trimmed)

	var probe struct {
		Error        json.RawMessage `json:"error"`
		Clarify      json.RawMessage `json:"clarify"`
		Interests    json.RawMessage `json:"interests"`
		Mapping      json.RawMessage `json:"mapping"`
		Explanations json.RawMessage `json:"explanations"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return Clarify{Question: trimmed}
	}

	switch {
	case probe.Error != nil:
		return Error{Message: display(probe.Error)}
	case probe.Clarify != nil:
		return Clarify{Question: display(probe.Clarify)}
	default:
		return Result{
			Interests:    probe.Interests,
			Mapping:      probe.Mapping,
			Explanations: probe.Explanations,
		}
	}
}

// stripFence unwraps a reply enclosed in a markdown code fence, which chat
// models frequently add around JSON despite instructions.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
