// Package server exposes local Go values as JSON-RPC services so remote
// proxies can call them.
//
// A Registry maps service names to receivers. Requests name a method as
// "service.method" (or just "method" for the default service registered
// under the empty name) and pass named parameters that are matched to the Go
// method's parameters by the names recorded in a proxyman.TypeDescriptor.
// Handlers for net/http, Echo, Gin, Fiber and WebSocket connections are
// provided in this package.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/toyz/proxyman/pkg/proxyman"
	"github.com/toyz/proxyman/pkg/proxyman/transport"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Registry dispatches JSON-RPC requests to registered services
type Registry struct {
	mu       sync.RWMutex
	services map[string]*service
	logger   *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger used for dispatch diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		services: make(map[string]*service),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type service struct {
	name       string
	receiver   reflect.Value
	methods    map[string]*method
	properties map[string]struct{}
}

type method struct {
	name     string
	fn       reflect.Value
	names    []string
	defaults []string
	takesCtx bool
	variadic bool
	errIndex int
}

// Register exposes receiver under name. When desc is non-nil its method
// signatures provide parameter names and must all exist on receiver;
// otherwise every exported method is exposed with parameters named argN.
func (r *Registry) Register(name string, receiver any, desc *proxyman.TypeDescriptor) error {
	if receiver == nil {
		return fmt.Errorf("%w: service %q has no receiver", proxyman.ErrInvalidConfiguration, name)
	}

	svc := &service{
		name:       name,
		receiver:   reflect.ValueOf(receiver),
		methods:    make(map[string]*method),
		properties: make(map[string]struct{}),
	}

	if desc != nil {
		for _, sig := range desc.Methods {
			fn := svc.receiver.MethodByName(sig.Name)
			if !fn.IsValid() {
				return fmt.Errorf("%w: %T has no method %s", proxyman.ErrSignatureMismatch, receiver, sig.Name)
			}
			m, err := newMethod(sig.Name, fn, &sig)
			if err != nil {
				return err
			}
			svc.methods[sig.Name] = m
		}
		for _, p := range desc.Properties {
			svc.properties[p.Name] = struct{}{}
		}
	} else {
		t := svc.receiver.Type()
		for i := 0; i < t.NumMethod(); i++ {
			mt := t.Method(i)
			if !mt.IsExported() {
				continue
			}
			m, err := newMethod(mt.Name, svc.receiver.Method(i), nil)
			if err != nil {
				return err
			}
			svc.methods[mt.Name] = m
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("%w: service %q already registered", proxyman.ErrInvalidConfiguration, name)
	}
	r.services[name] = svc

	r.logger.Debug("registered service",
		zap.String("service", name),
		zap.Int("methods", len(svc.methods)),
		zap.Int("properties", len(svc.properties)))
	return nil
}

func newMethod(name string, fn reflect.Value, sig *proxyman.MethodSignature) (*method, error) {
	ft := fn.Type()
	m := &method{
		name:     name,
		fn:       fn,
		variadic: ft.IsVariadic(),
		errIndex: -1,
	}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		m.takesCtx = true
		start = 1
	}

	if sig != nil {
		if len(sig.Params) != ft.NumIn() {
			return nil, fmt.Errorf("%w: %s declares %d parameters, receiver method has %d", proxyman.ErrSignatureMismatch, name, len(sig.Params), ft.NumIn())
		}
		for _, p := range sig.Params[start:] {
			m.names = append(m.names, p.Name)
			m.defaults = append(m.defaults, p.Default)
		}
	} else {
		for i := start; i < ft.NumIn(); i++ {
			m.names = append(m.names, fmt.Sprintf("arg%d", i))
			m.defaults = append(m.defaults, "")
		}
	}

	if n := ft.NumOut(); n > 0 && ft.Out(n-1) == errorType {
		m.errIndex = n - 1
	}
	return m, nil
}

// Services returns the registered service names
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}

// resolve splits "service.method" at the last dot, falling back to the
// default service for bare method names.
func (r *Registry) resolve(name string) (*service, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if pos := strings.LastIndex(name, "."); pos >= 0 {
		if svc, ok := r.services[name[:pos]]; ok {
			return svc, name[pos+1:], true
		}
	}
	svc, ok := r.services[""]
	return svc, name, ok
}

// Handle dispatches one request. Notifications yield a nil response.
func (r *Registry) Handle(ctx context.Context, req *transport.Request) *transport.Response {
	resp := r.dispatch(ctx, req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

func (r *Registry) dispatch(ctx context.Context, req *transport.Request) *transport.Response {
	if err := req.Validate(); err != nil {
		return transport.NewErrorResponse(req.ID, transport.NewError(transport.InvalidRequest, "%v", err))
	}

	svc, name, ok := r.resolve(req.Method)
	if !ok {
		r.logger.Warn("unknown service", zap.String("method", req.Method))
		return transport.NewErrorResponse(req.ID, transport.NewError(transport.MethodNotFound, "method %s not found", req.Method))
	}

	var (
		result any
		err    error
	)
	switch name {
	case proxyman.MethodGet, proxyman.MethodSet, proxyman.MethodIsset, proxyman.MethodUnset:
		result, err = svc.property(name, req.Params)
	default:
		m, found := svc.methods[name]
		if !found {
			return transport.NewErrorResponse(req.ID, transport.NewError(transport.MethodNotFound, "method %s not found", req.Method))
		}
		result, err = m.invoke(ctx, req.Params)
	}

	if err != nil {
		r.logger.Debug("call failed", zap.String("method", req.Method), zap.Error(err))
		var rpcErr *transport.Error
		if errors.As(err, &rpcErr) {
			return transport.NewErrorResponse(req.ID, rpcErr)
		}
		return transport.NewErrorResponse(req.ID, transport.NewError(transport.InternalError, "%v", err))
	}

	resp, err := transport.NewResult(req.ID, result)
	if err != nil {
		return transport.NewErrorResponse(req.ID, transport.NewError(transport.InternalError, "%v", err))
	}
	return resp
}

// ServeJSON decodes a request body, dispatches it and encodes the response.
// It returns nil for notifications.
func (r *Registry) ServeJSON(ctx context.Context, body []byte) []byte {
	var req transport.Request
	var resp *transport.Response
	if err := json.Unmarshal(body, &req); err != nil {
		resp = transport.NewErrorResponse(nil, transport.NewError(transport.ParseError, "invalid JSON: %v", err))
	} else {
		resp = r.Handle(ctx, &req)
	}
	if resp == nil {
		return nil
	}

	out, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("failed to encode response", zap.Error(err))
		out, _ = json.Marshal(transport.NewErrorResponse(req.ID, transport.NewError(transport.InternalError, "failed to encode response")))
	}
	return out
}

func (m *method) invoke(ctx context.Context, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, transport.NewError(transport.InternalError, "panic: %v", r)
		}
	}()

	ft := m.fn.Type()
	in := make([]reflect.Value, 0, ft.NumIn())
	if m.takesCtx {
		in = append(in, reflect.ValueOf(ctx))
	}

	values, err := m.bind(params)
	if err != nil {
		return nil, err
	}

	offset := len(in)
	for i, raw := range values {
		pt := ft.In(offset + i)
		v := reflect.New(pt)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, v.Interface()); err != nil {
				return nil, transport.NewError(transport.InvalidParams, "parameter %s: %v", m.names[i], err)
			}
		}
		in = append(in, v.Elem())
	}

	var out []reflect.Value
	if m.variadic {
		out = m.fn.CallSlice(in)
	} else {
		out = m.fn.Call(in)
	}

	if m.errIndex >= 0 {
		if errVal := out[m.errIndex]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
		out = out[:m.errIndex]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		results := make([]any, len(out))
		for i, v := range out {
			results[i] = v.Interface()
		}
		return results, nil
	}
}

// bind maps named or positional params onto the declared parameter order
func (m *method) bind(params json.RawMessage) ([]json.RawMessage, error) {
	values := make([]json.RawMessage, len(m.names))
	trimmed := strings.TrimSpace(string(params))

	switch {
	case trimmed == "" || trimmed == "null":
	case strings.HasPrefix(trimmed, "["):
		var positional []json.RawMessage
		if err := json.Unmarshal(params, &positional); err != nil {
			return nil, transport.NewError(transport.InvalidParams, "%v", err)
		}
		if len(positional) > len(m.names) {
			return nil, transport.NewError(transport.InvalidParams, "%s takes %d parameters, got %d", m.name, len(m.names), len(positional))
		}
		copy(values, positional)
	default:
		var named map[string]json.RawMessage
		if err := json.Unmarshal(params, &named); err != nil {
			return nil, transport.NewError(transport.InvalidParams, "%v", err)
		}
		for i, name := range m.names {
			values[i] = named[name]
		}
	}

	for i, raw := range values {
		if len(raw) == 0 && m.defaults[i] != "" {
			values[i] = json.RawMessage(m.defaults[i])
		}
	}
	return values, nil
}

func (s *service) property(op string, params json.RawMessage) (any, error) {
	var args struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, transport.NewError(transport.InvalidParams, "%v", err)
		}
	}
	if _, ok := s.properties[args.Name]; !ok {
		return nil, transport.NewError(transport.InvalidParams, "unknown property %s", args.Name)
	}

	v := s.receiver
	for (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, transport.NewError(transport.InvalidParams, "service %s has no properties", s.name)
	}
	field := v.FieldByName(args.Name)
	if !field.IsValid() {
		return nil, transport.NewError(transport.InvalidParams, "unknown property %s", args.Name)
	}

	switch op {
	case proxyman.MethodGet:
		return field.Interface(), nil
	case proxyman.MethodIsset:
		return !field.IsZero(), nil
	case proxyman.MethodUnset:
		if !field.CanSet() {
			return nil, transport.NewError(transport.InvalidParams, "property %s is read-only", args.Name)
		}
		field.Set(reflect.Zero(field.Type()))
		return nil, nil
	default:
		if !field.CanSet() {
			return nil, transport.NewError(transport.InvalidParams, "property %s is read-only", args.Name)
		}
		target := reflect.New(field.Type())
		if err := json.Unmarshal(args.Value, target.Interface()); err != nil {
			return nil, transport.NewError(transport.InvalidParams, "property %s: %v", args.Name, err)
		}
		field.Set(target.Elem())
		return nil, nil
	}
}
