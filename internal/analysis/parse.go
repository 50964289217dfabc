package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseRaw decodes model output into a RawAnalysis. Markdown code fences and
// prose around the JSON object are tolerated; anything that is not a JSON
// object is rejected.
func ParseRaw(text string) (*RawAnalysis, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, ErrEmptyInput
	}
	body = stripCodeFence(body)
	if strings.HasPrefix(body, "[") {
		return nil, fmt.Errorf("%w: top level value must be an object", ErrMalformedAnalysis)
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedAnalysis)
	}

	var raw RawAnalysis
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}
	return &raw, nil
}

func stripCodeFence(body string) string {
	if !strings.HasPrefix(body, "```") {
		return body
	}
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	body = strings.TrimSpace(body)
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}
