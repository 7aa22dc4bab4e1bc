package configstore

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ProviderConfig stores admin-edited gateway credentials. Config holds the
// AES-GCM envelope, never plaintext.
type ProviderConfig struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Provider  string         `gorm:"type:text;not null;uniqueIndex:ux_provider_configs_provider"`
	Config    datatypes.JSON `gorm:"type:jsonb;not null"`
	IsActive  bool           `gorm:"not null;default:true"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProviderConfig) TableName() string { return "payment_provider_configs" }
