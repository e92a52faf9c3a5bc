package proxyman

import (
	"context"
	"encoding/json"
	"fmt"
)

// Adapter translates a (service, method, arguments) triple into a transport
// call. Implementations must return transport errors unchanged.
type Adapter interface {
	Call(ctx context.Context, service, method string, args Arguments) (any, error)
}

// RemoteObject forwards calls of a generated remote proxy to an adapter.
// It holds no local instance.
type RemoteObject struct {
	service string
	adapter Adapter
}

// NewRemoteObject creates a remote object for service
func NewRemoteObject(service string, adapter Adapter) (*RemoteObject, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: remote object %q needs an adapter", ErrInvalidConfiguration, service)
	}
	if service == "" {
		return nil, fmt.Errorf("%w: remote object needs a service name", ErrInvalidConfiguration)
	}
	return &RemoteObject{service: service, adapter: adapter}, nil
}

// Service returns the remote service name
func (r *RemoteObject) Service() string {
	return r.service
}

// Adapter returns the adapter used for calls
func (r *RemoteObject) Adapter() Adapter {
	return r.adapter
}

// Call forwards method to the remote service
func (r *RemoteObject) Call(ctx context.Context, method string, args Arguments) (any, error) {
	return r.adapter.Call(ctx, r.service, method, args)
}

// GetProperty reads a remote property through a __get call
func (r *RemoteObject) GetProperty(ctx context.Context, name string) (any, error) {
	return r.Call(ctx, MethodGet, Arguments{{Name: "name", Value: name}})
}

// SetProperty writes a remote property through a __set call
func (r *RemoteObject) SetProperty(ctx context.Context, name string, value any) error {
	_, err := r.Call(ctx, MethodSet, Arguments{{Name: "name", Value: name}, {Name: "value", Value: value}})
	return err
}

// HasProperty checks a remote property through an __isset call
func (r *RemoteObject) HasProperty(ctx context.Context, name string) (bool, error) {
	result, err := r.Call(ctx, MethodIsset, Arguments{{Name: "name", Value: name}})
	if err != nil {
		return false, err
	}
	return Decode[bool](result)
}

// UnsetProperty removes a remote property through an __unset call
func (r *RemoteObject) UnsetProperty(ctx context.Context, name string) error {
	_, err := r.Call(ctx, MethodUnset, Arguments{{Name: "name", Value: name}})
	return err
}

var _ PropertyAccessor = (*RemoteObject)(nil)

// Decode converts a remote result into T. Values already of type T are
// returned as-is; raw JSON is unmarshaled; anything else is re-encoded
// through JSON.
func Decode[T any](v any) (T, error) {
	var out T
	if v == nil {
		return out, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	if err := decodeInto(v, &out); err != nil {
		return out, fmt.Errorf("%w (target %T)", err, out)
	}
	return out, nil
}

// DecodeAt decodes the i-th element of a remote result holding several
// return values (a JSON array or a []any).
func DecodeAt[T any](v any, i int) (T, error) {
	var out T

	var elems []json.RawMessage
	switch value := v.(type) {
	case []any:
		if i >= len(value) {
			return out, fmt.Errorf("decode remote result: index %d out of range (%d values)", i, len(value))
		}
		return Decode[T](value[i])
	case nil:
		return out, nil
	default:
		if err := decodeInto(value, &elems); err != nil {
			return out, err
		}
	}

	if i >= len(elems) {
		return out, fmt.Errorf("decode remote result: index %d out of range (%d values)", i, len(elems))
	}
	return Decode[T](elems[i])
}

func decodeInto(v any, target any) error {
	var raw []byte
	switch value := v.(type) {
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("decode remote result: %w", err)
		}
		raw = encoded
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode remote result: %w", err)
	}
	return nil
}
