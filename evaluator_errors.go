package assign

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

// ErrSelector matches every *SelectorError through errors.Is.
var ErrSelector = errors.New("assign: selector failed")

// SelectorError reports a selector that failed to compile or evaluate.
type SelectorError struct {
	Engine string
	Expr   string
	// Consumer is empty for compile failures.
	Consumer string
	Err      error
}

func (e *SelectorError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "assign: %s selector", e.Engine)
	if e.Expr != "" {
		fmt.Fprintf(&b, " %q", e.Expr)
	}
	if e.Consumer != "" {
		fmt.Fprintf(&b, " for %s", e.Consumer)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *SelectorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrSelector as a match.
func (e *SelectorError) Is(target error) bool {
	return target == ErrSelector
}

// engineError prefixes failures that are not tied to one expression.
func engineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var selErr *SelectorError
	if errors.As(err, &selErr) || strings.HasPrefix(err.Error(), "assign:") {
		return err
	}
	return fmt.Errorf("assign: %s evaluator: %w", engine, err)
}

// selectorError wraps err in a SelectorError, filling blanks on an existing
// one instead of nesting.
func selectorError(engine, expr, consumer string, err error) error {
	if err == nil {
		return nil
	}
	var selErr *SelectorError
	if !errors.As(err, &selErr) {
		return &SelectorError{Engine: engine, Expr: expr, Consumer: consumer, Err: err}
	}
	selErr.Engine = cmp.Or(selErr.Engine, engine)
	selErr.Expr = cmp.Or(selErr.Expr, expr)
	selErr.Consumer = cmp.Or(selErr.Consumer, consumer)
	return selErr
}
