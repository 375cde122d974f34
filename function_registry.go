package assign

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Function is a helper callable from selector expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores selector helpers keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// NewBuiltinRegistry returns a registry preloaded with the helpers every
// selector can use:
//
//	intersects(a, b)  true when the two string lists share an element
//	includes(list, s)  true when s is in list
func NewBuiltinRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("intersects", intersectsFunction)
	_ = r.Register("includes", includesFunction)
	return r
}

// Register stores fn under name. Names are case-insensitive and must be unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("assign: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("assign: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("assign: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("assign: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("assign: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

// WithFunctionRegistry exposes registry to selector expressions, replacing
// the built-in helpers.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *serviceConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn on top of the built-in helpers.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *serviceConfig) {
		if cfg.functions == nil {
			cfg.functions = NewBuiltinRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

func intersectsFunction(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("intersects expects 2 arguments, got %d", len(args))
	}
	left, err := stringList(args[0])
	if err != nil {
		return nil, err
	}
	right, err := stringList(args[1])
	if err != nil {
		return nil, err
	}
	return slices.ContainsFunc(left, func(item string) bool { return slices.Contains(right, item) }), nil
}

func includesFunction(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("includes expects 2 arguments, got %d", len(args))
	}
	list, err := stringList(args[0])
	if err != nil {
		return nil, err
	}
	item, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("includes expects a string, got %T", args[1])
	}
	return slices.Contains(list, item), nil
}

func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}
