package proxyman

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync"
)

// PropertyAccessor is the explicit replacement for implicit property
// interception. Generated proxies expose it through their holder.
type PropertyAccessor interface {
	GetProperty(ctx context.Context, name string) (any, error)
	SetProperty(ctx context.Context, name string, value any) error
	HasProperty(ctx context.Context, name string) (bool, error)
	UnsetProperty(ctx context.Context, name string) error
}

// HolderOption configures lazy and interceptor holders
type HolderOption func(*holderConfig)

type holderConfig struct {
	properties []string
}

// WithProperties declares the public properties of the wrapped type.
// Declared properties are read and written on the wrapped instance; any
// other name is tracked dynamically by the holder.
func WithProperties(names ...string) HolderOption {
	return func(c *holderConfig) {
		c.properties = append(c.properties, names...)
	}
}

func newHolderConfig(opts []HolderOption) holderConfig {
	var cfg holderConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// propertyTable tracks declared and dynamic properties of a proxy.
// Declared properties that were unset through the proxy are remembered so
// that they read as absent instead of exposing the zeroed field.
type propertyTable struct {
	mu       sync.RWMutex
	declared map[string]struct{}
	unset    map[string]struct{}
	dynamic  map[string]any
}

func newPropertyTable(names []string) *propertyTable {
	t := &propertyTable{
		declared: make(map[string]struct{}, len(names)),
		unset:    make(map[string]struct{}),
		dynamic:  make(map[string]any),
	}
	for _, n := range names {
		t.declared[n] = struct{}{}
	}
	return t
}

func (t *propertyTable) isDeclared(name string) bool {
	_, ok := t.declared[name]
	return ok
}

func (t *propertyTable) get(target any, name string) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.isDeclared(name) {
		if _, gone := t.unset[name]; gone {
			return nil, fmt.Errorf("%w: %s", ErrPropertyUnset, name)
		}
		field, err := fieldOf(target, name)
		if err != nil {
			return nil, err
		}
		return field.Interface(), nil
	}

	if v, ok := t.dynamic[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
}

func (t *propertyTable) set(target any, name string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isDeclared(name) {
		t.dynamic[name] = value
		return nil
	}

	field, err := fieldOf(target, name)
	if err != nil {
		return err
	}
	if err := assign(field, value); err != nil {
		return fmt.Errorf("cannot set property %s: %w", name, err)
	}
	delete(t.unset, name)
	return nil
}

func (t *propertyTable) has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.isDeclared(name) {
		_, gone := t.unset[name]
		return !gone
	}
	_, ok := t.dynamic[name]
	return ok
}

func (t *propertyTable) remove(target any, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isDeclared(name) {
		delete(t.dynamic, name)
		return nil
	}

	field, err := fieldOf(target, name)
	if err != nil {
		return err
	}
	field.Set(reflect.Zero(field.Type()))
	t.unset[name] = struct{}{}
	return nil
}

// reset forgets unset marks and dynamic properties, which belong to the
// instance they were recorded against.
func (t *propertyTable) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.unset)
	clear(t.dynamic)
}

// fieldOf resolves an exported, settable struct field through pointers and
// interfaces.
func fieldOf(target any, name string) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %s (nil instance)", ErrUnknownProperty, name)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %s (instance is %s)", ErrUnknownProperty, name, v.Kind())
	}

	field := v.FieldByName(name)
	if !field.IsValid() || !field.CanSet() {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return field, nil
}

// assign stores value into field when it is assignable, or when it is a
// number that the field's numeric type represents exactly. Strings and
// booleans may also be stored into named types of the same kind.
func assign(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	ft := field.Type()
	if v.Type().AssignableTo(ft) {
		field.Set(v)
		return nil
	}
	if k := v.Kind(); k == ft.Kind() && (k == reflect.String || k == reflect.Bool) {
		field.Set(v.Convert(ft))
		return nil
	}
	if out, ok := convertNumber(v, ft); ok {
		field.Set(out)
		return nil
	}
	return fmt.Errorf("value %v of type %s cannot be stored in %s", value, v.Type(), ft)
}

const (
	twoTo63 = float64(1 << 63)
	twoTo64 = twoTo63 * 2
)

func convertNumber(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	out := reflect.New(t).Elem()
	switch {
	case isInt(t.Kind()):
		var i int64
		switch {
		case isInt(v.Kind()):
			i = v.Int()
		case isUint(v.Kind()):
			if v.Uint() > math.MaxInt64 {
				return out, false
			}
			i = int64(v.Uint())
		case isFloat(v.Kind()):
			f := v.Float()
			if f != math.Trunc(f) || f < -twoTo63 || f >= twoTo63 {
				return out, false
			}
			i = int64(f)
		default:
			return out, false
		}
		if out.OverflowInt(i) {
			return out, false
		}
		out.SetInt(i)

	case isUint(t.Kind()):
		var u uint64
		switch {
		case isInt(v.Kind()):
			if v.Int() < 0 {
				return out, false
			}
			u = uint64(v.Int())
		case isUint(v.Kind()):
			u = v.Uint()
		case isFloat(v.Kind()):
			f := v.Float()
			if f != math.Trunc(f) || f < 0 || f >= twoTo64 {
				return out, false
			}
			u = uint64(f)
		default:
			return out, false
		}
		if out.OverflowUint(u) {
			return out, false
		}
		out.SetUint(u)

	case isFloat(t.Kind()):
		var f float64
		switch {
		case isInt(v.Kind()):
			f = float64(v.Int())
			if f >= twoTo63 || int64(f) != v.Int() {
				return out, false
			}
		case isUint(v.Kind()):
			f = float64(v.Uint())
			if f >= twoTo64 || uint64(f) != v.Uint() {
				return out, false
			}
		case isFloat(v.Kind()):
			f = v.Float()
		default:
			return out, false
		}
		if t.Kind() == reflect.Float32 && !isFloat(v.Kind()) && float64(float32(f)) != f {
			return out, false
		}
		if out.OverflowFloat(f) {
			return out, false
		}
		out.SetFloat(f)

	default:
		return out, false
	}
	return out, true
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
