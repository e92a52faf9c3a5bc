// Package adapter translates remote proxy calls into transport calls.
//
// An adapter receives (service, method, arguments) from a generated remote
// proxy and hands a single remote method name plus named parameters to a
// Client. Adapters perform no retries and no caching: reliability policy is
// owned by the client, and client errors are returned unchanged.
package adapter

import (
	"context"
	"fmt"

	"github.com/toyz/proxyman/pkg/proxyman"
)

// Client is the transport capability an adapter delegates to
type Client interface {
	Call(ctx context.Context, method string, params map[string]any) (any, error)
}

// ClientFunc adapts a function to the Client interface
type ClientFunc func(ctx context.Context, method string, params map[string]any) (any, error)

// Call implements Client
func (f ClientFunc) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	return f(ctx, method, params)
}

// Option configures a base adapter
type Option func(*base)

// WithMethodMap renames remote methods. Keys are "service.method" pairs,
// values are the names sent to the client.
func WithMethodMap(m map[string]string) Option {
	return func(b *base) {
		for k, v := range m {
			b.methodMap[k] = v
		}
	}
}

// base holds the client and the optional method map shared by adapters
type base struct {
	client    Client
	methodMap map[string]string
}

func newBase(client Client, opts []Option) (base, error) {
	if client == nil {
		return base{}, fmt.Errorf("%w: adapter needs a client", proxyman.ErrInvalidConfiguration)
	}
	b := base{
		client:    client,
		methodMap: make(map[string]string),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

func (b base) call(ctx context.Context, remoteName string, args proxyman.Arguments) (any, error) {
	return b.client.Call(ctx, remoteName, args.Map())
}

func (b base) mapped(service, method string) (string, bool) {
	name, ok := b.methodMap[service+"."+method]
	return name, ok
}

// JSONRPC sends calls as "service.method"
type JSONRPC struct {
	base
}

// NewJSONRPC creates a JSON-RPC style adapter
func NewJSONRPC(client Client, opts ...Option) (*JSONRPC, error) {
	b, err := newBase(client, opts)
	if err != nil {
		return nil, err
	}
	return &JSONRPC{base: b}, nil
}

// Call implements proxyman.Adapter
func (a *JSONRPC) Call(ctx context.Context, service, method string, args proxyman.Arguments) (any, error) {
	return a.call(ctx, a.ServiceName(service, method), args)
}

// ServiceName returns the remote method name for a call
func (a *JSONRPC) ServiceName(service, method string) string {
	if name, ok := a.mapped(service, method); ok {
		return name
	}
	return service + "." + method
}

// Direct sends calls using the bare method name, for endpoints that expose a
// single service (SOAP style).
type Direct struct {
	base
}

// NewDirect creates an adapter that ignores the service name
func NewDirect(client Client, opts ...Option) (*Direct, error) {
	b, err := newBase(client, opts)
	if err != nil {
		return nil, err
	}
	return &Direct{base: b}, nil
}

// Call implements proxyman.Adapter
func (a *Direct) Call(ctx context.Context, service, method string, args proxyman.Arguments) (any, error) {
	return a.call(ctx, a.ServiceName(service, method), args)
}

// ServiceName returns the remote method name for a call
func (a *Direct) ServiceName(service, method string) string {
	if name, ok := a.mapped(service, method); ok {
		return name
	}
	return method
}

// New builds an adapter by name ("jsonrpc" or "direct")
func New(name string, client Client, opts ...Option) (proxyman.Adapter, error) {
	switch name {
	case "", "jsonrpc":
		return NewJSONRPC(client, opts...)
	case "direct":
		return NewDirect(client, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown adapter %q", proxyman.ErrInvalidConfiguration, name)
	}
}

var (
	_ proxyman.Adapter = (*JSONRPC)(nil)
	_ proxyman.Adapter = (*Direct)(nil)
)
