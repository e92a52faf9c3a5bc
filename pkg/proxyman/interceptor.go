package proxyman

import (
	"context"
	"sync"
)

// Method names used when property access goes through an interceptor chain
const (
	MethodGet   = "__get"
	MethodSet   = "__set"
	MethodIsset = "__isset"
	MethodUnset = "__unset"
)

// Invocation describes one intercepted call
type Invocation struct {
	// Proxy is the generated proxy receiving the call
	Proxy any

	// Instance is the wrapped instance
	Instance any

	// Method is the name of the called method
	Method string

	// Args are the call arguments keyed by declared parameter name
	Args Arguments
}

// PrefixInterceptor runs before the wrapped call. Returning true
// short-circuits the call with the returned results.
type PrefixInterceptor func(ctx context.Context, inv *Invocation) (Results, bool)

// SuffixInterceptor runs after the wrapped call with the current results.
// Returning true replaces them.
type SuffixInterceptor func(ctx context.Context, inv *Invocation, results Results) (Results, bool)

// InterceptorChain holds per-method prefix and suffix interceptors.
// Registration is copy-on-write: a call in progress keeps traversing the
// lists it saw when it started.
type InterceptorChain struct {
	mu       sync.RWMutex
	prefixes map[string][]PrefixInterceptor
	suffixes map[string][]SuffixInterceptor
}

// NewInterceptorChain creates an empty chain
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		prefixes: make(map[string][]PrefixInterceptor),
		suffixes: make(map[string][]SuffixInterceptor),
	}
}

// AddPrefix appends a prefix interceptor for method
func (c *InterceptorChain) AddPrefix(method string, fn PrefixInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes[method] = appendCopy(c.prefixes[method], fn)
}

// AddSuffix appends a suffix interceptor for method
func (c *InterceptorChain) AddSuffix(method string, fn SuffixInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suffixes[method] = appendCopy(c.suffixes[method], fn)
}

// SetPrefixes replaces the prefix interceptors of method
func (c *InterceptorChain) SetPrefixes(method string, fns ...PrefixInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(fns) == 0 {
		delete(c.prefixes, method)
		return
	}
	c.prefixes[method] = append([]PrefixInterceptor(nil), fns...)
}

// SetSuffixes replaces the suffix interceptors of method
func (c *InterceptorChain) SetSuffixes(method string, fns ...SuffixInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(fns) == 0 {
		delete(c.suffixes, method)
		return
	}
	c.suffixes[method] = append([]SuffixInterceptor(nil), fns...)
}

// Clear removes every interceptor registered for method
func (c *InterceptorChain) Clear(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.prefixes, method)
	delete(c.suffixes, method)
}

// Len returns the number of prefix and suffix interceptors of method
func (c *InterceptorChain) Len(method string) (prefixes, suffixes int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prefixes[method]), len(c.suffixes[method])
}

func (c *InterceptorChain) snapshot(method string) ([]PrefixInterceptor, []SuffixInterceptor) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefixes[method], c.suffixes[method]
}

// Invoke runs the prefix interceptors, the wrapped call and the suffix
// interceptors of inv.Method in registration order.
func (c *InterceptorChain) Invoke(ctx context.Context, inv *Invocation, call func() Results) Results {
	prefixes, suffixes := c.snapshot(inv.Method)

	for _, prefix := range prefixes {
		if results, done := prefix(ctx, inv); done {
			return results
		}
	}

	results := call()

	for _, suffix := range suffixes {
		if replaced, ok := suffix(ctx, inv, results); ok {
			results = replaced
		}
	}
	return results
}

func appendCopy[T any](list []T, item T) []T {
	next := make([]T, len(list), len(list)+1)
	copy(next, list)
	return append(next, item)
}

// AccessInterceptorHolder couples an always-present instance with an
// interceptor chain. Generated interceptor proxies embed it.
type AccessInterceptorHolder[T any] struct {
	*InterceptorChain
	instance T
	props    *propertyTable
}

// NewAccessInterceptorHolder wraps instance with an empty interceptor chain
func NewAccessInterceptorHolder[T any](instance T, opts ...HolderOption) *AccessInterceptorHolder[T] {
	cfg := newHolderConfig(opts)
	return &AccessInterceptorHolder[T]{
		InterceptorChain: NewInterceptorChain(),
		instance:         instance,
		props:            newPropertyTable(cfg.properties),
	}
}

// WrappedInstance returns the wrapped instance
func (h *AccessInterceptorHolder[T]) WrappedInstance() T {
	return h.instance
}

// Intercept runs call through the chain registered for method
func (h *AccessInterceptorHolder[T]) Intercept(ctx context.Context, proxy any, method string, args Arguments, call func() Results) Results {
	inv := &Invocation{
		Proxy:    proxy,
		Instance: h.instance,
		Method:   method,
		Args:     args,
	}
	return h.Invoke(ctx, inv, call)
}

// GetProperty reads a property through the __get interceptors
func (h *AccessInterceptorHolder[T]) GetProperty(ctx context.Context, name string) (any, error) {
	results := h.Intercept(ctx, h, MethodGet, Arguments{{Name: "name", Value: name}}, func() Results {
		v, err := h.props.get(h.instance, name)
		return Results{v, err}
	})
	return Result[any](results, 0), Result[error](results, 1)
}

// SetProperty writes a property through the __set interceptors
func (h *AccessInterceptorHolder[T]) SetProperty(ctx context.Context, name string, value any) error {
	args := Arguments{{Name: "name", Value: name}, {Name: "value", Value: value}}
	results := h.Intercept(ctx, h, MethodSet, args, func() Results {
		return Results{h.props.set(h.instance, name, value)}
	})
	return Result[error](results, 0)
}

// HasProperty checks a property through the __isset interceptors
func (h *AccessInterceptorHolder[T]) HasProperty(ctx context.Context, name string) (bool, error) {
	results := h.Intercept(ctx, h, MethodIsset, Arguments{{Name: "name", Value: name}}, func() Results {
		return Results{h.props.has(name), nil}
	})
	return Result[bool](results, 0), Result[error](results, 1)
}

// UnsetProperty removes a property through the __unset interceptors
func (h *AccessInterceptorHolder[T]) UnsetProperty(ctx context.Context, name string) error {
	results := h.Intercept(ctx, h, MethodUnset, Arguments{{Name: "name", Value: name}}, func() Results {
		return Results{h.props.remove(h.instance, name)}
	})
	return Result[error](results, 0)
}

var _ PropertyAccessor = (*AccessInterceptorHolder[any])(nil)
