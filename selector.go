package assign

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Evaluator engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// NewEvaluator builds the named engine. The js engine requires the js_eval
// build tag.
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("assign: unknown evaluator %q", engine)
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e := e.(type) {
	case nil:
		return "unknown"
	case interface{ engineName() string }:
		return e.engineName()
	default:
		return "custom"
	}
}

// consumerBinding is the variable set a selector sees for one consumer:
//
//	identity, label, owner, fixed, ignore_override  scalars
//	allow, deny, require                            string lists
//	compatible                                      identities passing Filter
//	compatible_count                                len(compatible)
func consumerBinding(consumer *ConsumerDefinition, result FilterResult) map[string]any {
	compatible := make([]string, 0, len(result.Candidates))
	for _, candidate := range result.Candidates {
		compatible = append(compatible, candidate.Identity)
	}
	return map[string]any{
		"identity":         consumer.Identity,
		"label":            consumer.Name(),
		"owner":            consumer.Owner,
		"fixed":            consumer.FixedAssignment,
		"ignore_override":  consumer.IgnoreOverride,
		"allow":            nonNil(consumer.AllowList),
		"deny":             nonNil(consumer.DenyList),
		"require":          nonNil(consumer.RequireList),
		"compatible":       compatible,
		"compatible_count": len(compatible),
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return slices.Clone(list)
}

// matchSelector evaluates rule for consumer and requires a boolean result.
func (s *Service) matchSelector(rule CompiledRule, expr string, consumer *ConsumerDefinition, result FilterResult) (bool, error) {
	engine := evaluatorEngineName(s.evaluator)
	ctx := RuleContext{
		Snapshot: consumerBinding(consumer, result),
		Consumer: consumer.Identity,
	}
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	var matched bool
	if err == nil {
		var ok bool
		if matched, ok = value.(bool); !ok {
			err = fmt.Errorf("selector returned %T, want bool", value)
		}
	}
	err = selectorError(engine, expr, consumer.Identity, err)
	s.evaluatorLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Consumer: consumer.Identity,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

func (s *Service) compileSelector(expr string) (CompiledRule, error) {
	if s.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	rule, err := s.evaluator.Compile(expr)
	if err != nil {
		return nil, selectorError(evaluatorEngineName(s.evaluator), expr, "", err)
	}
	return rule, nil
}
