package adapters

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/payvault/internal/provider/domain"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	provider string
	config   map[string]any
}

func (a *fakeAdapter) Provider() string { return a.provider }
func (a *fakeAdapter) CreatePayment(context.Context, domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	return nil, errors.New("not implemented")
}
func (a *fakeAdapter) VerifyPayment(context.Context, string) (*domain.PaymentResult, error) {
	return nil, errors.New("not implemented")
}
func (a *fakeAdapter) Verify(context.Context, []byte, http.Header) error { return nil }
func (a *fakeAdapter) Parse(context.Context, []byte) (*domain.PaymentEvent, error) {
	return nil, domain.ErrEventIgnored
}

type fakeFactory struct {
	name   string
	env    map[string]any
	builds int
}

func (f *fakeFactory) Provider() string { return f.name }
func (f *fakeFactory) EnvConfig() map[string]any {
	return f.env
}
func (f *fakeFactory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	f.builds++
	return &fakeAdapter{provider: f.name, config: cfg.Config}, nil
}

type fakeLoader struct {
	configs map[string]map[string]any
	err     error
	calls   int
}

func (l *fakeLoader) Load(_ context.Context, provider string) (map[string]any, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.configs[provider], nil
}

func TestResolveUnknownProvider(t *testing.T) {
	registry := NewRegistry(time.Minute, zap.NewNop(), nil, &fakeFactory{name: "stripe"})

	if _, err := registry.Resolve(context.Background(), "square"); !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}
	if registry.ProviderExists("square") {
		t.Fatal("square must not exist")
	}
	if !registry.ProviderExists("STRIPE") {
		t.Fatal("lookup must be case insensitive")
	}
}

func TestResolvePrefersStoredConfig(t *testing.T) {
	factory := &fakeFactory{name: "stripe", env: map[string]any{"secret_key": "sk_env"}}
	loader := &fakeLoader{configs: map[string]map[string]any{
		"stripe": {"secret_key": "sk_stored"},
	}}
	registry := NewRegistry(time.Minute, zap.NewNop(), loader, factory)

	adapter, err := registry.Resolve(context.Background(), "stripe")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := adapter.(*fakeAdapter).config["secret_key"]; got != "sk_stored" {
		t.Fatalf("expected stored credentials, got %v", got)
	}
}

func TestResolveFallsBackToEnvironment(t *testing.T) {
	factory := &fakeFactory{name: "stripe", env: map[string]any{"secret_key": "sk_env"}}
	loader := &fakeLoader{}
	registry := NewRegistry(time.Minute, zap.NewNop(), loader, factory)

	adapter, err := registry.Resolve(context.Background(), "stripe")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := adapter.(*fakeAdapter).config["secret_key"]; got != "sk_env" {
		t.Fatalf("expected environment credentials, got %v", got)
	}
}

func TestResolveDegradesOnStoreError(t *testing.T) {
	factory := &fakeFactory{name: "stripe", env: map[string]any{"secret_key": "sk_env"}}
	loader := &fakeLoader{err: errors.New("store down")}
	registry := NewRegistry(time.Minute, zap.NewNop(), loader, factory)

	adapter, err := registry.Resolve(context.Background(), "stripe")
	if err != nil {
		t.Fatalf("resolve must degrade to environment: %v", err)
	}
	if got := adapter.(*fakeAdapter).config["secret_key"]; got != "sk_env" {
		t.Fatalf("expected environment credentials, got %v", got)
	}
}

func TestResolveConfigurationMissing(t *testing.T) {
	factory := &fakeFactory{name: "stripe"}
	registry := NewRegistry(time.Minute, zap.NewNop(), nil, factory)

	if _, err := registry.Resolve(context.Background(), "stripe"); !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected configuration missing, got %v", err)
	}
}

func TestResolveCachesInstances(t *testing.T) {
	factory := &fakeFactory{name: "stripe", env: map[string]any{"secret_key": "sk_env"}}
	loader := &fakeLoader{}
	registry := NewRegistry(time.Minute, zap.NewNop(), loader, factory)

	for i := 0; i < 3; i++ {
		if _, err := registry.Resolve(context.Background(), "stripe"); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if factory.builds != 1 {
		t.Fatalf("expected 1 build, got %d", factory.builds)
	}
	if loader.calls != 1 {
		t.Fatalf("expected 1 store lookup, got %d", loader.calls)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	factory := &fakeFactory{name: "stripe", env: map[string]any{"secret_key": "sk_env"}}
	registry := NewRegistry(time.Minute, zap.NewNop(), nil, factory)

	if _, err := registry.Resolve(context.Background(), "stripe"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	registry.Invalidate("stripe")
	if _, err := registry.Resolve(context.Background(), "stripe"); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if factory.builds != 2 {
		t.Fatalf("expected rebuild after invalidate, got %d builds", factory.builds)
	}
}

func TestResolveCachedSkipsStore(t *testing.T) {
	factory := &fakeFactory{name: "stripe", env: map[string]any{"secret_key": "sk_env"}}
	loader := &fakeLoader{configs: map[string]map[string]any{
		"stripe": {"secret_key": "sk_stored"},
	}}
	registry := NewRegistry(time.Minute, zap.NewNop(), loader, factory)

	adapter, err := registry.ResolveCached("stripe")
	if err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if loader.calls != 0 {
		t.Fatalf("cached resolution must not touch the store, got %d calls", loader.calls)
	}
	if got := adapter.(*fakeAdapter).config["secret_key"]; got != "sk_env" {
		t.Fatalf("expected environment credentials, got %v", got)
	}
}
