package workflow

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/haasonsaas/nexus/internal/corerr"
	"github.com/haasonsaas/nexus/pkg/models"
)

// variableRef matches ${node_id} or ${node_id.path.to.field}.
var variableRef = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// Resolver resolves ${...} references against a set of finished node
// envelopes. It is built fresh for each node about to run, from whatever
// envelopes are available so far.
type Resolver struct {
	outputs map[string]models.Envelope
	logger  *slog.Logger
}

// NewResolver builds a Resolver over the given node outputs.
func NewResolver(outputs map[string]models.Envelope, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{outputs: outputs, logger: logger}
}

// ResolveValue resolves a single pure-variable string ("${n.path}" and
// nothing else) to its native value, preserving the original type. Any
// other string is passed to ResolveString for interpolation instead.
func (r *Resolver) ResolveValue(s string) (any, error) {
	if ref, ok := pureReference(s); ok {
		return r.lookup(ref)
	}
	return r.ResolveString(s)
}

// ResolveString interpolates every ${...} reference found in s, stringifying
// each substituted value. A reference to a missing node or field leaves the
// literal substring intact and logs a warning rather than failing the whole
// string.
func (r *Resolver) ResolveString(s string) (string, error) {
	var firstErr error
	out := variableRef.ReplaceAllStringFunc(s, func(match string) string {
		ref := variableRef.FindStringSubmatch(match)[1]
		v, err := r.lookup(ref)
		if err != nil {
			r.logger.Warn("workflow: unresolved variable reference left intact", "ref", ref, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return stringify(v)
	})
	return out, nil
}

// ResolveParams walks a static_params-style map, resolving every string
// value (recursively through nested maps/slices) via ResolveValue.
func (r *Resolver) ResolveParams(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		resolved, err := r.resolveAny(v)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveAny(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.ResolveValue(val)
	case map[string]any:
		return r.ResolveParams(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := r.resolveAny(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// pureReference reports whether s is exactly one ${...} reference with
// nothing else around it, returning the inner path if so.
func pureReference(s string) (string, bool) {
	matches := variableRef.FindStringSubmatch(s)
	if matches == nil {
		return "", false
	}
	if matches[0] != s {
		return "", false
	}
	return matches[1], true
}

// lookup resolves one dotted reference ("node_id" or "node_id.path.to.field")
// against r.outputs. "result" is aliased to "value" so both
// "${n.result.x}" and "${n.value.x}" walk the same envelope field;
// "${n.meta.status}" walks the envelope's Meta instead. A bare "${n}"
// returns the envelope's Value. Any other leading path segment is treated
// as a field of Value directly, so "${n.x}" is shorthand for
// "${n.value.x}".
func (r *Resolver) lookup(ref string) (any, error) {
	parts := strings.Split(ref, ".")
	nodeID := parts[0]
	path := parts[1:]

	env, ok := r.outputs[nodeID]
	if !ok {
		return nil, corerr.New(corerr.KindNotFound, fmt.Sprintf("variable reference to unknown or not-yet-finished node %q", nodeID))
	}

	if len(path) == 0 {
		return env.Value, nil
	}

	switch path[0] {
	case "meta":
		return walk(metaToMap(env.Meta), path[1:])
	case "result", "value":
		return walk(env.Value, path[1:])
	default:
		return walk(env.Value, path)
	}
}

func metaToMap(m models.EnvelopeMeta) map[string]any {
	out := map[string]any{"phase": string(m.Phase)}
	if m.Result != "" {
		out["result"] = string(m.Result)
	}
	if m.ErrorMessage != "" {
		out["error_message"] = m.ErrorMessage
	}
	return out
}

// walk descends v field-by-field along path, supporting map[string]any
// indexing and []any positional indexing ("0", "1", ...).
func walk(v any, path []string) (any, error) {
	cur := v
	for _, field := range path {
		switch node := cur.(type) {
		case map[string]any:
			val, ok := node[field]
			if !ok {
				return nil, corerr.New(corerr.KindNotFound, fmt.Sprintf("field %q not found", field))
			}
			cur = val
		case []any:
			idx, err := strconv.Atoi(field)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, corerr.New(corerr.KindNotFound, fmt.Sprintf("index %q out of range", field))
			}
			cur = node[idx]
		default:
			return nil, corerr.New(corerr.KindNotFound, fmt.Sprintf("cannot descend into field %q of a non-object value", field))
		}
	}
	return cur, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
