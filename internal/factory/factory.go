// Package factory builds proxy definitions: the proxy type name and the Go
// source of every synthesized method. Definitions are cached in memory,
// optionally persisted to a Store, and concurrent requests for the same
// definition are collapsed into a single generation.
package factory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/templates"
	"github.com/toyz/proxyman/internal/utils"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// DefaultCacheSize bounds the in-memory definition cache
const DefaultCacheSize = 512

// Adapters accepted for remote proxies
var adapterNames = []string{"jsonrpc", "direct"}

// Factory builds and caches proxy definitions. It is safe for concurrent use.
type Factory struct {
	inflector *proxyman.Inflector
	registry  *templates.TemplateRegistry
	logger    *zap.Logger
	store     Store
	cacheSize int

	cache *lru.Cache[string, *Definition]
	group singleflight.Group

	// templateDigest changes whenever the built-in templates change, so
	// persisted definitions from another release are never reused
	templateDigest string

	generated   atomic.Int64
	memoryHits  atomic.Int64
	storeHits   atomic.Int64
	staleStored atomic.Int64
}

// Option configures a Factory
type Option func(*Factory)

// WithLogger sets the logger, zap.NewNop() by default
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithStore persists definitions to store
func WithStore(store Store) Option {
	return func(f *Factory) {
		f.store = store
	}
}

// WithCacheSize bounds the number of definitions kept in memory
func WithCacheSize(size int) Option {
	return func(f *Factory) {
		if size > 0 {
			f.cacheSize = size
		}
	}
}

// WithTemplates replaces the template registry
func WithTemplates(registry *templates.TemplateRegistry) Option {
	return func(f *Factory) {
		if registry != nil {
			f.registry = registry
		}
	}
}

// New creates a factory placing proxies under namespace
func New(namespace string, opts ...Option) (*Factory, error) {
	inflector, err := proxyman.NewInflector(namespace)
	if err != nil {
		return nil, errors.WrapConfigurationError("namespace", err)
	}

	f := &Factory{
		inflector: inflector,
		registry:  templates.NewTemplateRegistry(),
		logger:    zap.NewNop(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.cache, err = lru.New[string, *Definition](f.cacheSize)
	if err != nil {
		return nil, errors.WrapConfigurationError("cache size", err)
	}
	f.templateDigest = digestTemplates(f.registry)
	return f, nil
}

// Inflector returns the class name inflector used for proxy names
func (f *Factory) Inflector() *proxyman.Inflector {
	return f.inflector
}

// request carries the per-proxy settings that do not take part in the
// generation parameters
type request struct {
	goName     string
	service    string
	adapter    string
	implements *bool
}

// RequestOption customizes a single definition
type RequestOption func(*request)

// WithGoName sets the Go identifier of the proxy type
func WithGoName(name string) RequestOption {
	return func(r *request) { r.goName = name }
}

// WithService sets the remote service name of a remote proxy
func WithService(service string) RequestOption {
	return func(r *request) { r.service = service }
}

// WithAdapter selects the remote call adapter ("jsonrpc" or "direct")
func WithAdapter(name string) RequestOption {
	return func(r *request) { r.adapter = name }
}

// WithImplements controls the compile-time assertion that the proxy
// satisfies the original interface
func WithImplements(implements bool) RequestOption {
	return func(r *request) { r.implements = &implements }
}

// Definition returns the proxy definition of desc for kind and params
func (f *Factory) Definition(ctx context.Context, desc proxyman.TypeDescriptor, kind proxyman.Kind, params proxyman.Parameters, opts ...RequestOption) (*Definition, error) {
	if !kind.Valid() {
		return nil, errors.ConfigurationError("proxy kind", fmt.Sprintf("unknown kind %d", int(kind)))
	}
	if err := desc.Validate(); err != nil {
		return nil, errors.WrapConfigurationError("type descriptor", err)
	}

	req, err := f.resolve(desc, kind, opts)
	if err != nil {
		return nil, err
	}

	proxyName, err := f.inflector.ProxyName(desc.Name, params)
	if err != nil {
		return nil, errors.WrapConfigurationError("type name", err)
	}

	fingerprint := desc.Fingerprint()
	key := f.cacheKey(proxyName, kind, req)

	if def, ok := f.cache.Get(key); ok && def.Fingerprint == fingerprint {
		f.memoryHits.Add(1)
		return def, nil
	}

	v, err, shared := f.group.Do(key+"@"+fingerprint, func() (any, error) {
		if def, ok := f.cache.Get(key); ok && def.Fingerprint == fingerprint {
			f.memoryHits.Add(1)
			return def, nil
		}
		if def := f.load(ctx, key, fingerprint); def != nil {
			f.cache.Add(key, def)
			return def, nil
		}

		def, err := f.generate(desc, kind, proxyName, fingerprint, req)
		if err != nil {
			return nil, err
		}
		f.cache.Add(key, def)
		f.save(ctx, key, def)
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.logger.Debug("shared in-flight generation", zap.String("proxy", proxyName))
	}
	return v.(*Definition), nil
}

func (f *Factory) resolve(desc proxyman.TypeDescriptor, kind proxyman.Kind, opts []RequestOption) (request, error) {
	var req request
	for _, opt := range opts {
		opt(&req)
	}

	if req.goName == "" {
		req.goName = desc.GoName + kind.Suffix()
	}
	if err := utils.IsValidGoIdentifier("proxy name")(req.goName); err != nil {
		return req, errors.WrapConfigurationError("proxy name", err)
	}

	if kind != proxyman.KindRemote {
		req.service, req.adapter = "", ""
		return req, nil
	}

	if req.service == "" {
		req.service = desc.Name
	}
	if err := proxyman.ValidateTypeName(req.service); err != nil {
		return req, errors.WrapConfigurationError("service name", err)
	}
	if req.adapter == "" {
		req.adapter = adapterNames[0]
	}
	if err := utils.IsOneOf("adapter", adapterNames...)(req.adapter); err != nil {
		return req, errors.WrapConfigurationError("adapter", err)
	}
	return req, nil
}

func (f *Factory) cacheKey(proxyName string, kind proxyman.Kind, req request) string {
	implements := "default"
	if req.implements != nil {
		implements = strconv.FormatBool(*req.implements)
	}
	return strings.Join([]string{
		proxyName,
		kind.String(),
		req.goName,
		req.service,
		req.adapter,
		implements,
		f.templateDigest,
	}, "|")
}

func (f *Factory) generate(desc proxyman.TypeDescriptor, kind proxyman.Kind, proxyName, fingerprint string, req request) (*Definition, error) {
	def := &Definition{
		ProxyName:   proxyName,
		TypeName:    desc.Name,
		GoName:      req.goName,
		Kind:        kind,
		Original:    desc.GoName,
		Wrapped:     desc.GoName,
		Service:     req.service,
		Adapter:     req.adapter,
		Properties:  desc.PropertyNames(),
		Implements:  desc.Interface,
		Fingerprint: fingerprint,
	}
	if !desc.Interface {
		def.Wrapped = "*" + desc.GoName
	}
	if len(def.Properties) == 0 {
		def.Properties = nil
	}
	if req.implements != nil {
		def.Implements = *req.implements && desc.Interface
	}

	b := &builder{registry: f.registry, def: def}
	if err := b.build(desc); err != nil {
		return nil, err
	}

	f.generated.Add(1)
	f.logger.Debug("generated proxy definition",
		zap.String("proxy", proxyName),
		zap.String("type", desc.Name),
		zap.Stringer("kind", kind),
		zap.Int("methods", len(def.Methods)),
	)
	return def, nil
}

// load consults the persistent store. Entries whose fingerprint no longer
// matches are removed.
func (f *Factory) load(ctx context.Context, key, fingerprint string) *Definition {
	if f.store == nil {
		return nil
	}
	def, err := f.store.Load(ctx, key)
	if err != nil {
		f.logger.Warn("build cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if def == nil {
		return nil
	}
	if def.Fingerprint != fingerprint {
		f.staleStored.Add(1)
		f.logger.Debug("discarding stale cached definition", zap.String("proxy", def.ProxyName))
		if err := f.store.Delete(ctx, key); err != nil {
			f.logger.Warn("build cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	f.storeHits.Add(1)
	return def
}

func (f *Factory) save(ctx context.Context, key string, def *Definition) {
	if f.store == nil {
		return
	}
	if err := f.store.Save(ctx, key, def); err != nil {
		f.logger.Warn("build cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Stats counts how definitions were obtained
type Stats struct {
	Generated  int64
	MemoryHits int64
	StoreHits  int64
	Stale      int64
}

// Stats returns the factory counters
func (f *Factory) Stats() Stats {
	return Stats{
		Generated:  f.generated.Load(),
		MemoryHits: f.memoryHits.Load(),
		StoreHits:  f.storeHits.Load(),
		Stale:      f.staleStored.Load(),
	}
}

// Purge empties the in-memory cache
func (f *Factory) Purge() {
	f.cache.Purge()
}

func digestTemplates(registry *templates.TemplateRegistry) string {
	names := registry.Names()
	params := make(proxyman.Parameters, len(names))
	for _, name := range names {
		src, _ := registry.Get(name)
		params[name] = src
	}
	return proxyman.Digest(params)
}
