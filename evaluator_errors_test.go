package assign

import (
	"errors"
	"strings"
	"testing"
)

func TestSelectorErrorWrapsCause(t *testing.T) {
	base := errors.New("boom")
	err := selectorError("expr", "fixed && missing", "pirates", base)

	var selErr *SelectorError
	if !errors.As(err, &selErr) {
		t.Fatalf("expected SelectorError, got %T", err)
	}
	if selErr.Engine != "expr" || selErr.Expr != "fixed && missing" || selErr.Consumer != "pirates" {
		t.Fatalf("unexpected metadata %+v", selErr)
	}
	if !errors.Is(err, base) || !errors.Is(err, ErrSelector) {
		t.Fatalf("expected both the cause and ErrSelector to match")
	}
	want := `assign: expr selector "fixed && missing" for pirates: boom`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestSelectorErrorFillsBlanks(t *testing.T) {
	base := errors.New("compile failure")
	existing := &SelectorError{Engine: "expr", Err: base}

	err := selectorError("cel", "rule", "empire", existing)
	if err != existing {
		t.Fatalf("existing error should be reused, got %v", err)
	}
	if existing.Engine != "expr" {
		t.Fatalf("engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" || existing.Consumer != "empire" {
		t.Fatalf("blanks should be filled, got %+v", existing)
	}
	if selectorError("expr", "x", "", nil) != nil {
		t.Fatalf("nil errors stay nil")
	}
}

func TestEngineErrorPrefixesOnce(t *testing.T) {
	prefixed := errors.New("assign: already wrapped")
	if got := engineError("expr", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned as-is, got %v", got)
	}
	got := engineError("cel", errors.New("bad"))
	if !strings.HasPrefix(got.Error(), "assign: cel evaluator:") {
		t.Fatalf("unexpected wrapped message %q", got.Error())
	}
	compileErr := &SelectorError{Engine: "js", Err: errors.New("syntax")}
	if got := engineError("js", compileErr); got != compileErr {
		t.Fatalf("selector errors pass through untouched")
	}
}

func TestLoadErrorMessages(t *testing.T) {
	err := &LoadError{Path: "defs/a.yaml", Identity: "Alpha", Reason: RejectUnresolvedTag, Ref: "Ghost"}
	if !strings.Contains(err.Error(), "Alpha") || !strings.Contains(err.Error(), "Ghost") {
		t.Fatalf("expected identity and reference in message, got %q", err.Error())
	}
	wrapped := &LoadError{Path: "defs/b.yaml", Reason: RejectUnreadable, Err: errors.New("yaml: bad")}
	if !strings.Contains(wrapped.Error(), "defs/b.yaml") {
		t.Fatalf("expected path in message, got %q", wrapped.Error())
	}
	if errors.Unwrap(wrapped) == nil {
		t.Fatalf("expected wrapped cause")
	}
}
