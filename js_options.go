package assign

import "time"

// DefaultJSTimeout bounds one js selector run.
const DefaultJSTimeout = 250 * time.Millisecond

type jsOptions struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSEvaluatorOption configures the goja backed evaluator built with the
// js_eval tag. Options are accepted without the tag so callers compile
// either way.
type JSEvaluatorOption func(*jsOptions)

// JSWithProgramCache stores compiled scripts in cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(o *jsOptions) {
		o.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry functions as globals and through
// call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(o *jsOptions) {
		if registry != nil {
			o.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts runs that take longer than d. Zero disables the
// limit.
func JSWithTimeout(d time.Duration) JSEvaluatorOption {
	return func(o *jsOptions) {
		o.timeout = max(d, 0)
	}
}

func newJSOptions(opts []JSEvaluatorOption) jsOptions {
	o := jsOptions{timeout: DefaultJSTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
