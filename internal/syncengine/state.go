package syncengine

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ilyaseen19/krios-sub001/internal/model"
)

// StateStore reads and mutates the sync metadata of one resolved tenant
// database. It is bound to a database handle, not to a tenant globally, so a
// fresh store is constructed per resolved connection.
type StateStore struct {
	db *gorm.DB
}

// NewStateStore binds a state store to a tenant database handle.
func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db}
}

// Initialize creates the sync metadata row with status success and all
// collection timestamps null. Callers must check for an existing row first;
// a second call for an initialized tenant is a caller error.
func (s *StateStore) Initialize(tenantID string) error {
	meta := model.SyncMetadata{
		TenantID: tenantID,
		Status:   model.SyncStatusSuccess,
	}
	return s.db.Create(&meta).Error
}

// Get returns the tenant's sync metadata.
func (s *StateStore) Get(tenantID string) (*model.SyncMetadata, error) {
	var meta model.SyncMetadata
	err := s.db.Where("tenant_id = ?", tenantID).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return &meta, nil
}

// MarkInProgress transitions the tenant to in_progress and, when a
// collection is given, stamps that collection's last-synced timestamp.
func (s *StateStore) MarkInProgress(tenantID, collection string) error {
	updates := map[string]interface{}{
		"status": model.SyncStatusInProgress,
	}
	if collection != "" {
		updates[model.CollectionColumn(collection)] = time.Now().UTC()
	}
	return s.update(tenantID, updates)
}

// MarkSuccess transitions the tenant to success, clears any stored error,
// and stamps the global last-sync timestamp.
func (s *StateStore) MarkSuccess(tenantID string) error {
	return s.update(tenantID, map[string]interface{}{
		"status":              model.SyncStatusSuccess,
		"last_error":          nil,
		"last_sync_timestamp": time.Now().UTC(),
	})
}

// MarkFailed transitions the tenant to failed and records the error text.
func (s *StateStore) MarkFailed(tenantID, errText string) error {
	return s.update(tenantID, map[string]interface{}{
		"status":     model.SyncStatusFailed,
		"last_error": errText,
	})
}

func (s *StateStore) update(tenantID string, updates map[string]interface{}) error {
	res := s.db.Model(&model.SyncMetadata{}).Where("tenant_id = ?", tenantID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotInitialized
	}
	return nil
}
