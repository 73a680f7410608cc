package workflow

import "testing"

func evalLiteral(t *testing.T, expr string) any {
	t.Helper()
	p := newExprParser(expr)
	node, err := p.parseExpr()
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	if !p.atEnd() {
		t.Fatalf("trailing input parsing %q", expr)
	}
	v, err := node.eval()
	if err != nil {
		t.Fatalf("eval %q: %v", expr, err)
	}
	return v
}

func TestExprParser_Precedence(t *testing.T) {
	if v := evalLiteral(t, "1 + 2 * 3"); v != 7.0 {
		t.Fatalf("got %v, want 7", v)
	}
	if v := evalLiteral(t, "(1 + 2) * 3"); v != 9.0 {
		t.Fatalf("got %v, want 9", v)
	}
	if v := evalLiteral(t, "2 ** 3 ** 2"); v != 512.0 {
		t.Fatalf("got %v, want 512 (right-associative power)", v)
	}
}

func TestExprParser_NestedCalls(t *testing.T) {
	if v := evalLiteral(t, "max(min(1, 2), 0)"); v != 1.0 {
		t.Fatalf("got %v, want 1", v)
	}
}

func TestExprParser_ComparisonChainIsNotSupported(t *testing.T) {
	// "1 < 2 < 3" parses as (1 < 2) then a trailing "< 3" is left over,
	// since comparisons are intentionally non-associative.
	p := newExprParser("1 < 2 < 3")
	node, err := p.parseExpr()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.atEnd() {
		t.Fatalf("expected trailing input after the first comparison")
	}
	v, err := node.eval()
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if v != true {
		t.Fatalf("got %v, want true for 1 < 2", v)
	}
}

func TestExprParser_UnknownTrailingTokenErrors(t *testing.T) {
	if _, err := EvaluateCondition(resolverWithOutputs(t, nil), "1 ? 2"); err == nil {
		t.Fatalf("expected an error for an unrecognized operator token")
	}
}

func TestExprParser_UnaryMinus(t *testing.T) {
	if v := evalLiteral(t, "-5 + 3"); v != -2.0 {
		t.Fatalf("got %v, want -2", v)
	}
}

func TestExprParser_Modulo(t *testing.T) {
	if v := evalLiteral(t, "10 % 3"); v != 1.0 {
		t.Fatalf("got %v, want 1", v)
	}
}
