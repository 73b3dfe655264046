package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError indicates a content model returned output that could not be
// interpreted even after best-effort extraction.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	preview := e.Raw
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return fmt.Sprintf("failed to parse model output: %s (got %q)", e.Reason, preview)
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")
	bareJSONRe   = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// UnmarshalLoose decodes model output that was requested as JSON. Phase one
// is a strict parse; phase two pulls a JSON object or array out of fenced
// code blocks or surrounding prose. If both phases fail it returns a
// *ParseError so callers can apply the stage's failure policy.
func UnmarshalLoose(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &ParseError{Reason: "empty output", Raw: raw}
	}

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	if m := fencedJSONRe.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}

	if m := bareJSONRe.FindString(trimmed); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}

	return &ParseError{Reason: "no valid JSON found", Raw: raw}
}

// ExtractField pulls a single string field out of malformed JSON-ish output
// by regex, as a last resort when UnmarshalLoose fails but one field is all
// the caller needs.
func ExtractField(raw, field string) (string, bool) {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &out); err != nil {
		return m[1], true
	}
	return out, true
}

// ParseNumberedList extracts items from a model-generated numbered or
// bulleted list, tolerating intro lines and markdown noise.
func ParseNumberedList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Skip intro text, headers, and markdown
		if strings.HasPrefix(line, "Here are") ||
			strings.HasPrefix(line, "**") ||
			strings.HasPrefix(line, "#") ||
			strings.HasSuffix(line, ":") {
			continue
		}
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if len(line) > 2 && line[1] == '.' && line[0] >= '1' && line[0] <= '9' {
			line = strings.TrimSpace(line[2:])
		}
		line = strings.Trim(line, "`")
		if len(line) > 5 {
			items = append(items, line)
		}
	}
	return items
}
