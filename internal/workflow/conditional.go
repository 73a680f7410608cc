package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/haasonsaas/nexus/internal/corerr"
)

// maxExpressionLength caps the literal-substituted condition string the
// evaluator will accept, so a pathological condition can't make parsing or
// evaluation expensive.
const maxExpressionLength = 2000

// maxPowerExponent caps the exponent of the "**" operator so a condition
// can't force an expensive or enormous computation.
const maxPowerExponent = 64

// builtins is the closed whitelist of callable functions a condition may
// use. No other identifier is ever callable, and no identifier is ever
// resolvable as a bare variable - every value a condition sees must already
// be a literal substituted in by EvaluateCondition.
var builtins = map[string]func(args []any) (any, error){
	"abs":   builtinAbs,
	"min":   builtinMin,
	"max":   builtinMax,
	"len":   builtinLen,
	"int":   builtinInt,
	"float": builtinFloat,
	"str":   builtinStr,
	"bool":  builtinBool,
}

// EvaluateCondition resolves every ${...} reference in condition to a
// literal value, then parses and evaluates the resulting expression.
// Conditions support numeric/string/boolean operators, comparisons,
// and/or/not, and the builtins whitelist above. There is no attribute
// access and no way to reference a node output except through ${...}
// substitution performed ahead of parsing.
func EvaluateCondition(r *Resolver, condition string) (bool, error) {
	literalExpr, err := substituteLiterals(r, condition)
	if err != nil {
		return false, err
	}
	if len(literalExpr) > maxExpressionLength {
		return false, corerr.New(corerr.KindInvalid, fmt.Sprintf("condition exceeds maximum length of %d characters", maxExpressionLength))
	}

	p := newExprParser(literalExpr)
	node, err := p.parseExpr()
	if err != nil {
		return false, corerr.Wrap(corerr.KindInvalid, "parse condition", err)
	}
	if !p.atEnd() {
		return false, corerr.New(corerr.KindInvalid, fmt.Sprintf("unexpected trailing input in condition at position %d", p.pos))
	}

	v, err := node.eval()
	if err != nil {
		return false, corerr.Wrap(corerr.KindInvalid, "evaluate condition", err)
	}
	return truthy(v), nil
}

// substituteLiterals replaces every ${...} reference in s with a literal
// token representing its resolved value's Go-expressible type (string,
// float64, int, bool). Composite values (maps, slices) cannot be
// substituted into an expression and are rejected.
func substituteLiterals(r *Resolver, s string) (string, error) {
	var b strings.Builder
	var firstErr error
	out := variableRef.ReplaceAllStringFunc(s, func(match string) string {
		ref := variableRef.FindStringSubmatch(match)[1]
		v, err := r.lookup(ref)
		if err != nil {
			firstErr = err
			return match
		}
		lit, err := literalToken(v)
		if err != nil {
			firstErr = err
			return match
		}
		return lit
	})
	if firstErr != nil {
		return "", firstErr
	}
	b.WriteString(out)
	return b.String(), nil
}

func literalToken(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case bool:
		return strconv.FormatBool(val), nil
	case string:
		return strconv.Quote(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return "", corerr.New(corerr.KindInvalid, fmt.Sprintf("value of type %T cannot be used in a condition", v))
	}
}

// exprNode is one parsed AST node; eval produces its runtime value.
type exprNode interface {
	eval() (any, error)
}

type literalNode struct{ v any }

func (n literalNode) eval() (any, error) { return n.v, nil }

type unaryNode struct {
	op   string
	expr exprNode
}

func (n unaryNode) eval() (any, error) {
	v, err := n.expr.eval()
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "not":
		return !truthy(v), nil
	case "-":
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return -f, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", n.op)
}

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n binaryNode) eval() (any, error) {
	l, err := n.left.eval()
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "and":
		if !truthy(l) {
			return false, nil
		}
		r, err := n.right.eval()
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	case "or":
		if truthy(l) {
			return true, nil
		}
		r, err := n.right.eval()
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	r, err := n.right.eval()
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+":
		return arith(n.op, l, r)
	case "-", "*", "/", "%", "**":
		return arith(n.op, l, r)
	}
	return nil, fmt.Errorf("unknown binary operator %q", n.op)
}

type callNode struct {
	name string
	args []exprNode
}

func (n callNode) eval() (any, error) {
	fn, ok := builtins[n.name]
	if !ok {
		return nil, corerr.New(corerr.KindInvalid, fmt.Sprintf("%q is not a whitelisted function", n.name))
	}
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	default:
		f, err := toFloat(v)
		return err == nil && f != 0
	}
}

func equal(l, r any) bool {
	lf, lerr := toFloat(l)
	rf, rerr := toFloat(r)
	if lerr == nil && rerr == nil {
		return lf == rf
	}
	return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r)
}

func compare(op string, l, r any) (bool, error) {
	lf, err := toFloat(l)
	if err != nil {
		ls, lok := l.(string)
		rs, rok := r.(string)
		if lok && rok {
			switch op {
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
		return false, corerr.New(corerr.KindInvalid, "comparison requires two numbers or two strings")
	}
	rf, err := toFloat(r)
	if err != nil {
		return false, corerr.New(corerr.KindInvalid, "comparison requires two numbers or two strings")
	}
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", op)
}

func arith(op string, l, r any) (any, error) {
	lf, err := toFloat(l)
	if err != nil {
		return nil, err
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, corerr.New(corerr.KindInvalid, "division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, corerr.New(corerr.KindInvalid, "modulo by zero")
		}
		return math.Mod(lf, rf), nil
	case "**":
		if rf > maxPowerExponent || rf < -maxPowerExponent {
			return nil, corerr.New(corerr.KindInvalid, fmt.Sprintf("exponent exceeds the maximum of %d", maxPowerExponent))
		}
		return math.Pow(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, corerr.New(corerr.KindInvalid, fmt.Sprintf("value of type %T is not numeric", v))
	}
}

func builtinAbs(args []any) (any, error) {
	if len(args) != 1 {
		return nil, corerr.New(corerr.KindInvalid, "abs() takes exactly one argument")
	}
	f, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	return math.Abs(f), nil
}

func builtinMin(args []any) (any, error) {
	if len(args) == 0 {
		return nil, corerr.New(corerr.KindInvalid, "min() requires at least one argument")
	}
	best, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		f, err := toFloat(a)
		if err != nil {
			return nil, err
		}
		if f < best {
			best = f
		}
	}
	return best, nil
}

func builtinMax(args []any) (any, error) {
	if len(args) == 0 {
		return nil, corerr.New(corerr.KindInvalid, "max() requires at least one argument")
	}
	best, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		f, err := toFloat(a)
		if err != nil {
			return nil, err
		}
		if f > best {
			best = f
		}
	}
	return best, nil
}

func builtinLen(args []any) (any, error) {
	if len(args) != 1 {
		return nil, corerr.New(corerr.KindInvalid, "len() takes exactly one argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, corerr.New(corerr.KindInvalid, "len() only supports strings")
	}
	return float64(len(s)), nil
}

func builtinInt(args []any) (any, error) {
	if len(args) != 1 {
		return nil, corerr.New(corerr.KindInvalid, "int() takes exactly one argument")
	}
	f, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	return math.Trunc(f), nil
}

func builtinFloat(args []any) (any, error) {
	if len(args) != 1 {
		return nil, corerr.New(corerr.KindInvalid, "float() takes exactly one argument")
	}
	return toFloat(args[0])
}

func builtinStr(args []any) (any, error) {
	if len(args) != 1 {
		return nil, corerr.New(corerr.KindInvalid, "str() takes exactly one argument")
	}
	return stringify(args[0]), nil
}

func builtinBool(args []any) (any, error) {
	if len(args) != 1 {
		return nil, corerr.New(corerr.KindInvalid, "bool() takes exactly one argument")
	}
	return truthy(args[0]), nil
}
