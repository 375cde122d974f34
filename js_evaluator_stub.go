//go:build !js_eval

package assign

import "fmt"

// NewJSEvaluator returns an evaluator that rejects every expression when
// built without the js_eval tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSOptions(opts)
	return unavailableJS{}
}

type unavailableJS struct{}

func (unavailableJS) Evaluate(RuleContext, string) (any, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags js_eval", ErrNoEvaluator)
}

func (unavailableJS) Compile(string, ...CompileOption) (CompiledRule, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags js_eval", ErrNoEvaluator)
}

func jsEvaluatorAvailable() bool {
	return false
}

func (unavailableJS) engineName() string { return EngineJS }
