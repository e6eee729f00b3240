package generation

import "strings"

const (
	fenceJSON = "```json"
	fence     = "```"
)

// StripCodeFence removes a leading ```json (or bare ```) marker and a
// trailing ``` marker, then trims whitespace. Interior content is untouched
// and applying it twice gives the same result as once.
func StripCodeFence(text string) string {
	out := strings.TrimSpace(text)
	for {
		next := out
		switch {
		case strings.HasPrefix(next, fenceJSON):
			next = next[len(fenceJSON):]
		case strings.HasPrefix(next, fence):
			next = next[len(fence):]
		}
		if strings.HasSuffix(next, fence) {
			next = next[:len(next)-len(fence)]
		}
		next = strings.TrimSpace(next)
		if next == out {
			return out
		}
		out = next
	}
}

// Result is the terminal outcome of one Generate call.
type Result struct {
	Success    bool        `json:"success"`
	JSONObject interface{} `json:"json_object,omitempty"`
	RootSchema string      `json:"root_schema,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
	Attempts   int         `json:"attempts"`
}

func succeeded(object interface{}, rootSchema string, attempts int) *Result {
	return &Result{
		Success:    true,
		JSONObject: object,
		RootSchema: rootSchema,
		Attempts:   attempts,
	}
}

func failed(msg string, attempts int) *Result {
	return &Result{
		Success:  false,
		Errors:   []string{msg},
		Attempts: attempts,
	}
}

// isBlank mirrors the "missing" rule for response fields: absent, null, or
// an empty string, object or array.
func isBlank(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}
