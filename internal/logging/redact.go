package logging

import (
	"encoding/json"
	"strings"
)

var redactKeys = map[string]struct{}{
	"password":      {},
	"secret":        {},
	"secretkey":     {},
	"secret_key":    {},
	"private_key":   {},
	"privatekey":    {},
	"access_token":  {},
	"refresh_token": {},
	"jwttoken":      {},
	"cookiestring":  {},
	"code":          {},
}

// Redact masks secret-looking keys in a JSON document. Input that is not
// JSON is returned unchanged.
func Redact(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return raw
	}
	return string(b)
}

// RedactValue marshals v to JSON and redacts it
func RedactValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return Redact(string(b))
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if _, ok := redactKeys[strings.ToLower(k)]; ok {
				out[k] = "***REDACTED***"
				continue
			}
			out[k] = redactValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = redactValue(t[i])
		}
		return out
	default:
		return v
	}
}
