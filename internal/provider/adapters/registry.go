package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/payvault/internal/cache"
	"github.com/smallbiznis/payvault/internal/provider/domain"
	"go.uber.org/zap"
)

const defaultTTL = 5 * time.Minute

// ConfigLoader resolves persisted gateway credentials. A nil map with a nil
// error means no stored configuration exists.
type ConfigLoader interface {
	Load(ctx context.Context, provider string) (map[string]any, error)
}

// Registry resolves ready-to-use adapters per gateway. Resolution order is
// cached instance, then the persisted config store (async path only), then
// process environment variables. Instances are cached per gateway and per
// resolution mode until TTL expiry or explicit invalidation.
type Registry struct {
	factories map[string]domain.AdapterFactory
	instances *cache.TTLCache[string, domain.Adapter]
	loader    ConfigLoader
	ttl       time.Duration
	log       *zap.Logger
}

func NewRegistry(ttl time.Duration, log *zap.Logger, loader ConfigLoader, factories ...domain.AdapterFactory) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	byName := make(map[string]domain.AdapterFactory, len(factories))
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		byName[strings.ToLower(factory.Provider())] = factory
	}
	return &Registry{
		factories: byName,
		instances: cache.NewTTLCache[string, domain.Adapter](),
		loader:    loader,
		ttl:       ttl,
		log:       log.Named("provider.registry"),
	}
}

// ProviderExists reports whether a factory is registered for the gateway.
func (r *Registry) ProviderExists(provider string) bool {
	_, ok := r.factories[normalize(provider)]
	return ok
}

// Providers lists registered gateway names.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Resolve returns an adapter for the gateway, consulting the persisted config
// store when the cache misses. Store failures are logged and degrade to the
// environment fallback.
func (r *Registry) Resolve(ctx context.Context, provider string) (domain.Adapter, error) {
	provider = normalize(provider)
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}

	key := "async:" + provider
	if adapter, ok := r.instances.Get(key); ok {
		return adapter, nil
	}

	var cfg map[string]any
	if r.loader != nil {
		stored, err := r.loader.Load(ctx, provider)
		if err != nil {
			r.log.Warn("provider config store lookup failed, falling back to environment",
				zap.String("provider", provider),
				zap.Error(err),
			)
		} else {
			cfg = stored
		}
	}
	if len(cfg) == 0 {
		cfg = factory.EnvConfig()
	}

	adapter, err := r.build(factory, provider, cfg)
	if err != nil {
		return nil, err
	}
	r.instances.Set(key, adapter, r.ttl)
	return adapter, nil
}

// ResolveCached returns an adapter without touching the config store. Suitable
// for callers that cannot await store I/O; only cached instances and
// environment credentials are considered.
func (r *Registry) ResolveCached(provider string) (domain.Adapter, error) {
	provider = normalize(provider)
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}

	key := "sync:" + provider
	if adapter, ok := r.instances.Get(key); ok {
		return adapter, nil
	}

	adapter, err := r.build(factory, provider, factory.EnvConfig())
	if err != nil {
		return nil, err
	}
	r.instances.Set(key, adapter, r.ttl)
	return adapter, nil
}

// Invalidate drops cached instances for a gateway. Called after admin config
// edits so the next resolution re-reads credentials.
func (r *Registry) Invalidate(provider string) {
	provider = normalize(provider)
	r.instances.Delete("async:" + provider)
	r.instances.Delete("sync:" + provider)
}

func (r *Registry) build(factory domain.AdapterFactory, provider string, cfg map[string]any) (domain.Adapter, error) {
	if len(cfg) == 0 {
		return nil, domain.ConfigurationMissing(provider)
	}
	return factory.NewAdapter(domain.AdapterConfig{Provider: provider, Config: cfg})
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
