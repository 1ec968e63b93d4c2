package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stockline-hq/stockline-backend/pkg/db/types"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// Channel is an external storefront connection owned by one user.
// Credential values are encrypted field-by-field before they reach this row.
type Channel struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Type          enums.ChannelType   `gorm:"column:type;type:channel_type_enum;not null"`
	Name          string              `gorm:"column:name;not null"`
	Status        enums.ChannelStatus `gorm:"column:status;type:channel_status_enum;not null;default:'pending'"`
	StoreURL      string              `gorm:"column:store_url;not null"`
	Credentials   types.CredentialMap `gorm:"column:credentials;type:jsonb;not null;default:'{}'"`
	WebhookTopics pq.StringArray      `gorm:"column:webhook_topics;type:text"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ChannelProductMapping links one external SKU to at most one internal
// product per channel.
type ChannelProductMapping struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ChannelID         uuid.UUID `gorm:"column:channel_id;type:uuid;not null;uniqueIndex:ux_channel_external_product"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ExternalProductID string    `gorm:"column:external_product_id;not null;uniqueIndex:ux_channel_external_product"`
	Label             *string   `gorm:"column:label"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
