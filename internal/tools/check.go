package tools

import (
	"encoding/json"
	"strings"
)

// CheckToolError recognizes legacy error-leakage shapes in a raw tool
// output string and reports whether the content represents a failure. It
// treats three shapes as errors: the literal prefix "<tool-error>", the
// literal prefix "Error:", and any stringified envelope with ok=false
// (JSON or Python-literal form). A success envelope (ok=true) is never an
// error.
func CheckToolError(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "<tool-error>") {
		return true
	}
	if strings.HasPrefix(trimmed, "Error:") {
		return true
	}

	if ok, found := envelopeOK(trimmed); found {
		return !ok
	}
	return false
}

// envelopeOK attempts to read an "ok" boolean out of a stringified envelope,
// trying JSON first and then the Python literal spelling (True/False,
// single-quoted keys) the legacy source emits.
func envelopeOK(s string) (ok bool, found bool) {
	var decoded struct {
		OK *bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(s), &decoded); err == nil && decoded.OK != nil {
		return *decoded.OK, true
	}

	pythonized := strings.NewReplacer("'", `"`, "True", "true", "False", "false").Replace(s)
	if err := json.Unmarshal([]byte(pythonized), &decoded); err == nil && decoded.OK != nil {
		return *decoded.OK, true
	}
	return false, false
}
