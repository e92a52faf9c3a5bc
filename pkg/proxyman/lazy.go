package proxyman

import (
	"context"
	"sync/atomic"
)

// Initializer creates the wrapped instance of a lazy holder
type Initializer[T any] func(ctx context.Context) (T, error)

// LazyState is the lifecycle state of a lazy holder
type LazyState int32

const (
	Uninitialized LazyState = iota
	Initializing
	Initialized
)

// String returns a readable state name
func (s LazyState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	default:
		return "unknown"
	}
}

type holderKey struct{}

// initChain lists the holders whose initializers are running on a context,
// innermost first.
type initChain struct {
	holder any
	parent *initChain
}

func (c *initChain) contains(holder any) bool {
	for ; c != nil; c = c.parent {
		if c.holder == holder {
			return true
		}
	}
	return false
}

func chainFrom(ctx context.Context) *initChain {
	c, _ := ctx.Value(holderKey{}).(*initChain)
	return c
}

// LazyHolder defers creation of a wrapped instance until first access.
// The initializer runs at most once at a time; concurrent callers wait for
// it and then share the installed instance. A failed initialization leaves
// the holder uninitialized so a later access can retry.
type LazyHolder[T any] struct {
	state       atomic.Int32
	sem         chan struct{}
	initializer Initializer[T]
	instance    atomic.Pointer[T]
	props       *propertyTable
}

// NewLazyHolder creates an uninitialized holder
func NewLazyHolder[T any](initializer Initializer[T], opts ...HolderOption) *LazyHolder[T] {
	cfg := newHolderConfig(opts)
	return &LazyHolder[T]{
		sem:         make(chan struct{}, 1),
		initializer: initializer,
		props:       newPropertyTable(cfg.properties),
	}
}

// State returns the current lifecycle state
func (h *LazyHolder[T]) State() LazyState {
	return LazyState(h.state.Load())
}

// IsInitialized reports whether the wrapped instance is present
func (h *LazyHolder[T]) IsInitialized() bool {
	return h.State() == Initialized
}

// Instance returns the wrapped instance, running the initializer if needed.
// Waiting callers honor ctx cancellation.
func (h *LazyHolder[T]) Instance(ctx context.Context) (T, error) {
	if p := h.instance.Load(); p != nil {
		return *p, nil
	}
	var zero T

	chain := chainFrom(ctx)
	if chain.contains(h) {
		return zero, ErrReentrantInitialization
	}

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-h.sem }()

	if p := h.instance.Load(); p != nil {
		return *p, nil
	}
	if h.initializer == nil {
		return zero, ErrNoInitializer
	}

	h.state.Store(int32(Initializing))
	instance, err := h.initializer(context.WithValue(ctx, holderKey{}, &initChain{holder: h, parent: chain}))
	if err != nil {
		h.state.Store(int32(Uninitialized))
		return zero, err
	}

	h.instance.Store(&instance)
	h.state.Store(int32(Initialized))
	return instance, nil
}

// Initialize forces initialization without using the instance
func (h *LazyHolder[T]) Initialize(ctx context.Context) error {
	_, err := h.Instance(ctx)
	return err
}

// SetInitializer replaces the initializer and drops any wrapped instance
// along with its property state, returning the holder to the uninitialized
// state.
func (h *LazyHolder[T]) SetInitializer(ctx context.Context, initializer Initializer[T]) error {
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-h.sem }()

	h.instance.Store(nil)
	h.initializer = initializer
	h.props.reset()
	h.state.Store(int32(Uninitialized))
	return nil
}

// GetProperty reads a property, initializing the holder first
func (h *LazyHolder[T]) GetProperty(ctx context.Context, name string) (any, error) {
	instance, err := h.Instance(ctx)
	if err != nil {
		return nil, err
	}
	return h.props.get(instance, name)
}

// SetProperty writes a property, initializing the holder first
func (h *LazyHolder[T]) SetProperty(ctx context.Context, name string, value any) error {
	instance, err := h.Instance(ctx)
	if err != nil {
		return err
	}
	return h.props.set(instance, name, value)
}

// HasProperty reports whether a property is present, initializing the holder first
func (h *LazyHolder[T]) HasProperty(ctx context.Context, name string) (bool, error) {
	if err := h.Initialize(ctx); err != nil {
		return false, err
	}
	return h.props.has(name), nil
}

// UnsetProperty removes a property. Declared properties are zeroed on the
// wrapped instance and recorded as absent; dynamic properties are only
// dropped from the holder's own tracking.
func (h *LazyHolder[T]) UnsetProperty(ctx context.Context, name string) error {
	instance, err := h.Instance(ctx)
	if err != nil {
		return err
	}
	return h.props.remove(instance, name)
}

var _ PropertyAccessor = (*LazyHolder[any])(nil)
