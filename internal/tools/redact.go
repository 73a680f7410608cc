package tools

import "strings"

// redactedKeys names keys whose values are always replaced, matched
// case-insensitively as a substring (so "api_key", "API_KEY", and
// "client_api_key" all match "api_key").
var redactedKeys = []string{
	"token",
	"key",
	"api_key",
	"secret",
	"authorization",
	"bearer",
	"credential",
	"access_token",
	"private_key",
}

const redactedValue = "[REDACTED]"

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range redactedKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Redact walks an arbitrary decoded-JSON value (map[string]any, []any, or a
// primitive) and replaces the value of any key matching the redaction set
// with "[REDACTED]". It recurses into maps and slices; primitives pass
// through unchanged. Redact is idempotent: Redact(Redact(x)) == Redact(x).
func Redact(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		if keyValueShape(v) {
			if sensitiveKeyValueShape(v) {
				out["key"] = v["key"]
				out["value"] = redactedValue
				return out
			}
		}
		for k, val := range v {
			if isSensitiveKey(k) {
				out[k] = redactedValue
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Redact(item)
		}
		return out
	default:
		return value
	}
}

// keyValueShape reports whether m looks like a {"key": ..., "value": ...}
// record, the shape tool-call argument structures commonly use to carry a
// single header/param pair.
func keyValueShape(m map[string]any) bool {
	if len(m) != 2 {
		return false
	}
	_, hasKey := m["key"]
	_, hasValue := m["value"]
	return hasKey && hasValue
}

// sensitiveKeyValueShape reports whether a {"key": ..., "value": ...} record
// names a sensitive header/param in its "key" field, e.g.
// {"key":"Authorization","value":"Bearer ..."}.
func sensitiveKeyValueShape(m map[string]any) bool {
	name, ok := m["key"].(string)
	if !ok {
		return false
	}
	return isSensitiveKey(name)
}
