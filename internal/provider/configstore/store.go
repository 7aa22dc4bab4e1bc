package configstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrInvalidConfig        = errors.New("invalid_config")
)

const keyInfo = "payvault/provider-config/v1"

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Cfg   config.Config
}

// Store persists per-gateway credentials editable from the admin surface.
type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	key   []byte
}

func NewStore(p Params) (*Store, error) {
	var key []byte
	if secret := strings.TrimSpace(p.Cfg.PaymentProviderConfigSecret); secret != "" {
		kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
		key = make([]byte, 32)
		if _, err := io.ReadFull(kdf, key); err != nil {
			return nil, err
		}
	}
	return &Store{
		db:    p.DB,
		log:   p.Log.Named("provider.configstore"),
		genID: p.GenID,
		key:   key,
	}, nil
}

// Load returns the decrypted config for an active provider row, or nil when no
// row exists.
func (s *Store) Load(ctx context.Context, provider string) (map[string]any, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, ErrInvalidConfig
	}

	var row ProviderConfig
	err := s.db.WithContext(ctx).
		Where("provider = ? AND is_active = ?", provider, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decrypt(row.Config)
}

// Save upserts the encrypted config for a provider.
func (s *Store) Save(ctx context.Context, provider string, cfg map[string]any) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || len(cfg) == 0 {
		return ErrInvalidConfig
	}

	sealed, err := s.encrypt(cfg)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO payment_provider_configs (id, provider, config, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, TRUE, ?, ?)
		 ON CONFLICT (provider) DO UPDATE
		 SET config = EXCLUDED.config, is_active = TRUE, updated_at = EXCLUDED.updated_at`,
		s.genID.Generate(),
		provider,
		sealed,
		now,
		now,
	).Error
}

func (s *Store) encrypt(cfg map[string]any) (datatypes.JSON, error) {
	if len(s.key) == 0 {
		return nil, ErrEncryptionKeyMissing
	}
	plain, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := encryptedPayload{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, plain, nil)),
	}
	return json.Marshal(sealed)
}

func (s *Store) decrypt(encrypted datatypes.JSON) (map[string]any, error) {
	if len(s.key) == 0 {
		return nil, ErrEncryptionKeyMissing
	}
	if len(encrypted) == 0 {
		return nil, ErrInvalidConfig
	}

	var payload encryptedPayload
	if err := json.Unmarshal(encrypted, &payload); err != nil {
		return nil, ErrInvalidConfig
	}
	if payload.Version != 1 {
		return nil, ErrInvalidConfig
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, ErrInvalidConfig
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrInvalidConfig
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidConfig
	}

	var out map[string]any
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, ErrInvalidConfig
	}
	if len(out) == 0 {
		return nil, ErrInvalidConfig
	}
	return out, nil
}
