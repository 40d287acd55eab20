package syncengine

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ilyaseen19/krios-sub001/internal/model"
	"github.com/ilyaseen19/krios-sub001/internal/tenantdb"
)

// Restore reads back the full current contents of one collection for
// backup/export. The tenant database must already exist; a successful read
// counts as a sync touchpoint and stamps the sync state success.
func (s *Synchronizer) Restore(tenantID, merchantName, collection string) ([]map[string]interface{}, error) {
	if !model.IsValidCollection(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	db, effectiveTenant, err := s.existingHandle(tenantID, merchantName)
	if err != nil {
		return nil, err
	}

	records, err := readCollection(db, collection)
	if err != nil {
		return nil, err
	}

	if err := NewStateStore(db).MarkSuccess(effectiveTenant); err != nil {
		return nil, err
	}

	s.log.Info("collection restored",
		zap.String("tenant_id", effectiveTenant),
		zap.String("collection", collection),
		zap.Int("count", len(records)))
	return records, nil
}

// RestoreAll reads all five collections concurrently and joins before
// returning. The reads are independent; each goroutine writes its own slot.
func (s *Synchronizer) RestoreAll(tenantID, merchantName string) (map[string][]map[string]interface{}, error) {
	db, effectiveTenant, err := s.existingHandle(tenantID, merchantName)
	if err != nil {
		return nil, err
	}

	results := make([][]map[string]interface{}, len(model.Collections))
	var g errgroup.Group
	for i, collection := range model.Collections {
		i, collection := i, collection
		g.Go(func() error {
			records, err := readCollection(db, collection)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := NewStateStore(db).MarkSuccess(effectiveTenant); err != nil {
		return nil, err
	}

	out := make(map[string][]map[string]interface{}, len(model.Collections))
	for i, collection := range model.Collections {
		out[collection] = results[i]
	}

	s.log.Info("all collections restored", zap.String("tenant_id", effectiveTenant))
	return out, nil
}

// existingHandle resolves the tenant database only if it has already been
// provisioned. Restore never creates databases.
func (s *Synchronizer) existingHandle(tenantID, merchantName string) (*gorm.DB, string, error) {
	name, exists, err := s.resolver.Exists(tenantID, merchantName)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return nil, "", fmt.Errorf("%s: %w", name, tenantdb.ErrDatabaseNotFound)
	}
	return s.resolver.Resolve(tenantID, merchantName)
}

func readCollection(db *gorm.DB, collection string) ([]map[string]interface{}, error) {
	var rows []model.SyncedRecord
	if err := db.Table(collection).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Flatten())
	}
	return out, nil
}
