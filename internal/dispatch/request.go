package dispatch

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	TransportHTTP  = "http"
	TransportZeebe = "zeebe"
)

// Headers holds request headers keyed by canonical MIME header name.
type Headers map[string]string

// NewHeaders canonicalizes the keys of h.
func NewHeaders(h map[string]string) Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

// HeadersFromHTTP keeps the first value of every header.
func HeadersFromHTTP(h http.Header) Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	return out
}

func (h Headers) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[http.CanonicalHeaderKey(key)]
}

// Request is one decoded envelope.
type Request struct {
	Kind      Kind
	Body      json.RawMessage
	Headers   Headers
	Transport string
	RequestID string
}

// HeaderBinder is implemented by inputs that read values from headers.
type HeaderBinder interface {
	BindHeaders(h Headers)
}

// ParseBody accepts a body that is either a JSON object or a JSON string
// holding one. An absent body is an empty object.
func ParseBody(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`), nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return json.RawMessage(`{}`), nil
		}
		trimmed = inner
	}
	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, err
	}
	return json.RawMessage(trimmed), nil
}
