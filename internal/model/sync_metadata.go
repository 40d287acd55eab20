package model

import (
	"time"
)

// Sync status values persisted in the syncmetadatas table.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusSuccess    = "success"
	SyncStatusFailed     = "failed"
)

// Synced collection names. Every tenant database carries exactly these
// tables plus syncmetadatas.
const (
	CollectionProducts     = "products"
	CollectionTransactions = "transactions"
	CollectionUsers        = "users"
	CollectionCategories   = "categories"
	CollectionSettings     = "settings"
)

// Collections lists the synced collections in their fixed processing order.
var Collections = []string{
	CollectionProducts,
	CollectionTransactions,
	CollectionUsers,
	CollectionCategories,
	CollectionSettings,
}

// IsValidCollection reports whether name is one of the synced collections.
func IsValidCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// CollectionColumn maps a collection name to its per-collection
// last-synced timestamp column in the syncmetadatas table.
func CollectionColumn(name string) string {
	return name + "_synced_at"
}

// SyncMetadata is the durable per-tenant record of synchronization health.
// One row per tenant database, created when the database is first provisioned
// and never deleted.
type SyncMetadata struct {
	ID                uint       `json:"-" gorm:"primaryKey"`
	TenantID          string     `json:"tenant_id" gorm:"column:tenant_id;type:varchar(128);uniqueIndex;not null"`
	LastSyncTimestamp *time.Time `json:"last_sync_timestamp" gorm:"column:last_sync_timestamp"`

	ProductsSyncedAt     *time.Time `json:"products_synced_at" gorm:"column:products_synced_at"`
	TransactionsSyncedAt *time.Time `json:"transactions_synced_at" gorm:"column:transactions_synced_at"`
	UsersSyncedAt        *time.Time `json:"users_synced_at" gorm:"column:users_synced_at"`
	CategoriesSyncedAt   *time.Time `json:"categories_synced_at" gorm:"column:categories_synced_at"`
	SettingsSyncedAt     *time.Time `json:"settings_synced_at" gorm:"column:settings_synced_at"`

	Status    string    `json:"status" gorm:"type:varchar(20);not null"`
	LastError *string   `json:"error" gorm:"column:last_error;type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the metadata table name.
func (SyncMetadata) TableName() string {
	return "syncmetadatas"
}
