package assign

import (
	"errors"
	"time"
)

// ErrNoEvaluator is returned when a selector is used without an evaluator.
var ErrNoEvaluator = errors.New("assign: evaluator not configured")

// RuleContext carries inputs needed when evaluating a selector.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Consumer names the consumer under evaluation for error reporting.
	Consumer string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) consumerLabel() string {
	if ctx.Consumer != "" {
		return ctx.Consumer
	}
	return "unknown"
}

// Evaluator executes selector expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable selector program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// ProgramCache stores compiled selector programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapProgramCache is an unbounded in-memory ProgramCache.
type MapProgramCache map[string]any

// NewMapProgramCache returns an empty MapProgramCache.
func NewMapProgramCache() MapProgramCache {
	return MapProgramCache{}
}

// Get implements ProgramCache.
func (c MapProgramCache) Get(key string) (any, bool) {
	value, ok := c[key]
	return value, ok
}

// Set implements ProgramCache.
func (c MapProgramCache) Set(key string, value any) {
	c[key] = value
}
