package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/meridian-bank/meridian-web/internal/backend"
)

// Classify maps a failed backend call onto the taxonomy. It returns nil for a
// nil error and never panics.
func Classify(err error) Error {
	if err == nil {
		return nil
	}
	var classified Error
	if errors.As(err, &classified) {
		return classified
	}

	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr)
	}
	var setupErr *backend.SetupError
	if errors.As(err, &setupErr) {
		return RequestSetupFailed{Cause: setupErr}
	}
	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) {
		return NetworkUnreachable{Cause: transportErr}
	}
	return Unclassified{Cause: err}
}

func classifyStatus(e *backend.StatusError) Error {
	switch status := e.StatusCode; {
	case status == http.StatusUnauthorized:
		return AuthenticationRequired{}
	case status == http.StatusForbidden:
		return AuthorizationDenied{}
	case status == http.StatusNotFound:
		return NotFound{}
	case status == http.StatusConflict:
		msg, _ := parsePayload(e.Body)
		return Conflict{Message: msg}
	case status == http.StatusUnprocessableEntity:
		msg, fields := parsePayload(e.Body)
		return ValidationFailed{Message: msg, Fields: fields}
	case status == http.StatusTooManyRequests:
		return RateLimited{RetryAfter: e.RetryAfter}
	case status >= 500 && status <= 599:
		return ServerError{Status: status}
	default:
		return Unclassified{Status: status, Cause: e}
	}
}

// parsePayload extracts a human message and per-field errors from an error
// body. Both bare payloads and {"data": ...} envelopes are accepted.
func parsePayload(body []byte) (string, map[string]string) {
	if len(body) == 0 {
		return "", nil
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", nil
	}
	msg, fields := extract(doc)
	if data, ok := doc["data"].(map[string]any); ok {
		innerMsg, innerFields := extract(data)
		if msg == "" {
			msg = innerMsg
		}
		if len(fields) == 0 {
			fields = innerFields
		}
	}
	if msg == "" && len(fields) > 0 {
		msg = firstField(fields)
	}
	return msg, fields
}

func extract(doc map[string]any) (string, map[string]string) {
	msg := stringField(doc, "message")
	if msg == "" {
		msg = stringField(doc, "error")
	}
	fields := map[string]string{}
	switch errs := doc["errors"].(type) {
	case map[string]any:
		for k, v := range errs {
			if s := flatten(v); s != "" {
				fields[k] = s
			}
		}
	case []any:
		for i, item := range errs {
			switch v := item.(type) {
			case string:
				fields[fmt.Sprintf("%d", i)] = v
			case map[string]any:
				key := stringField(v, "field")
				if key == "" {
					key = fmt.Sprintf("%d", i)
				}
				if s := stringField(v, "message"); s != "" {
					fields[key] = s
				}
			}
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return msg, fields
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return strings.TrimSpace(s)
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

func firstField(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fields[keys[0]]
}
