package configstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T, secret string) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS payment_provider_configs (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL UNIQUE,
			config TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	store, err := NewStore(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg:   config.Config{PaymentProviderConfigSecret: secret},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := setupStore(t, "test-secret")
	ctx := context.Background()

	cfg := map[string]any{"secret_key": "sk_live", "webhook_secret": "whsec"}
	if err := store.Save(ctx, "Stripe", cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "stripe")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["secret_key"] != "sk_live" || loaded["webhook_secret"] != "whsec" {
		t.Fatalf("unexpected config: %v", loaded)
	}
}

func TestStoredConfigIsNotPlaintext(t *testing.T) {
	store := setupStore(t, "test-secret")
	ctx := context.Background()

	if err := store.Save(ctx, "stripe", map[string]any{"secret_key": "sk_live"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var row ProviderConfig
	if err := store.db.Where("provider = ?", "stripe").First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if strings.Contains(string(row.Config), "sk_live") {
		t.Fatal("credentials must not be stored in plaintext")
	}
}

func TestSaveUpsertsExistingProvider(t *testing.T) {
	store := setupStore(t, "test-secret")
	ctx := context.Background()

	if err := store.Save(ctx, "stripe", map[string]any{"secret_key": "sk_old"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, "stripe", map[string]any{"secret_key": "sk_new"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := store.Load(ctx, "stripe")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["secret_key"] != "sk_new" {
		t.Fatalf("expected updated credentials, got %v", loaded)
	}

	var count int64
	if err := store.db.Model(&ProviderConfig{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row per provider, got %d", count)
	}
}

func TestLoadMissingProviderReturnsNil(t *testing.T) {
	store := setupStore(t, "test-secret")

	loaded, err := store.Load(context.Background(), "stripe")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for missing provider, got %v", loaded)
	}
}

func TestSaveRequiresEncryptionKey(t *testing.T) {
	store := setupStore(t, "")

	err := store.Save(context.Background(), "stripe", map[string]any{"secret_key": "sk_live"})
	if !errors.Is(err, ErrEncryptionKeyMissing) {
		t.Fatalf("expected encryption key missing, got %v", err)
	}
}

func TestSaveRejectsEmptyConfig(t *testing.T) {
	store := setupStore(t, "test-secret")

	if err := store.Save(context.Background(), "stripe", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
	if err := store.Save(context.Background(), "", map[string]any{"a": "b"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}
