package syncengine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ilyaseen19/krios-sub001/internal/model"
	"github.com/ilyaseen19/krios-sub001/internal/tenantdb"
)

// fakeResolver satisfies ConnectionResolver with a prepared handle.
type fakeResolver struct {
	db        *gorm.DB
	canonical string
	exists    bool
	err       error
}

func (f *fakeResolver) Resolve(tenantID, merchantName string) (*gorm.DB, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	tenant := tenantID
	if f.canonical != "" {
		tenant = f.canonical
	}
	return f.db, tenant, nil
}

func (f *fakeResolver) Exists(tenantID, merchantName string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	return "krios_" + tenantID, f.exists, nil
}

// newTenantDB opens an in-memory store shaped like a provisioned tenant
// database: the five collection tables plus an initialized metadata row.
func newTenantDB(t *testing.T, tenantID string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.SyncMetadata{}))
	for _, collection := range model.Collections {
		require.NoError(t, db.Table(collection).AutoMigrate(&model.SyncedRecord{}))
	}
	require.NoError(t, NewStateStore(db).Initialize(tenantID))
	return db
}

func records(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]interface{}{
			"id":   fmt.Sprintf("p%d", i),
			"name": fmt.Sprintf("Widget %d", i),
		})
	}
	return out
}

func tableCount(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Table(table).Count(&count).Error)
	return count
}

func TestSyncUpsertIsIdempotent(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	batch := records(7)
	count, err := s.Sync("abc-123", "", model.CollectionProducts, batch)
	require.NoError(t, err)
	require.Equal(t, 7, count)

	// Applying the same batch again converges to the same record set.
	count, err = s.Sync("abc-123", "", model.CollectionProducts, batch)
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.EqualValues(t, 7, tableCount(t, db, "products"))
}

func TestSyncDuplicateIDInOneCallLastWins(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	count, err := s.Sync("abc-123", "", model.CollectionProducts, []map[string]interface{}{
		{"id": "p1", "name": "Widget"},
		{"id": "p1", "name": "Widget v2"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var row model.SyncedRecord
	require.NoError(t, db.Table("products").First(&row).Error)
	require.Equal(t, "p1", row.ID)
	require.Equal(t, "Widget v2", row.Data["name"])
}

func TestSyncOverwritesExistingRecord(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	_, err := s.Sync("abc-123", "", model.CollectionProducts, []map[string]interface{}{
		{"id": "p1", "name": "Widget", "price": 10},
	})
	require.NoError(t, err)

	_, err = s.Sync("abc-123", "", model.CollectionProducts, []map[string]interface{}{
		{"id": "p1", "name": "Widget v2"},
	})
	require.NoError(t, err)

	var row model.SyncedRecord
	require.NoError(t, db.Table("products").First(&row).Error)
	require.Equal(t, "Widget v2", row.Data["name"])
	// Full replacement, not a merge.
	require.NotContains(t, row.Data, "price")
	require.EqualValues(t, 1, tableCount(t, db, "products"))
}

func TestSyncStripsInternalIdentityFields(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	_, err := s.Sync("abc-123", "", model.CollectionProducts, []map[string]interface{}{
		{"id": "p1", "_id": "stale-internal-identity", "name": "Widget"},
	})
	require.NoError(t, err)

	var row model.SyncedRecord
	require.NoError(t, db.Table("products").First(&row).Error)
	require.NotContains(t, row.Data, "_id")
	require.NotContains(t, row.Data, "id")
	require.Equal(t, "Widget", row.Data["name"])
}

func TestSyncBatchBoundariesAreDeterministic(t *testing.T) {
	db := newTenantDB(t, "abc-123")

	var sizes []int
	err := db.Callback().Create().After("gorm:create").Register("capture_batches", func(tx *gorm.DB) {
		if tx.Statement.Table == "products" {
			sizes = append(sizes, int(tx.RowsAffected))
		}
	})
	require.NoError(t, err)

	s := NewSynchronizer(&fakeResolver{db: db}, 100, nil)
	count, err := s.Sync("abc-123", "", model.CollectionProducts, records(250))
	require.NoError(t, err)
	require.Equal(t, 250, count)

	// 250 records split into exactly 100, 100, 50.
	require.Equal(t, []int{100, 100, 50}, sizes)
}

func TestSyncMidBatchFailureKeepsEarlierBatches(t *testing.T) {
	db := newTenantDB(t, "abc-123")

	calls := 0
	err := db.Callback().Create().Before("gorm:create").Register("drop_second_batch", func(tx *gorm.DB) {
		if tx.Statement.Table != "products" {
			return
		}
		calls++
		if calls == 2 {
			tx.AddError(errors.New("network drop"))
		}
	})
	require.NoError(t, err)

	s := NewSynchronizer(&fakeResolver{db: db}, 100, nil)
	count, err := s.Sync("abc-123", "", model.CollectionProducts, records(250))

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, model.CollectionProducts, syncErr.Collection)
	require.Equal(t, 100, count)

	// Batch 1 stays committed; the failure is recorded in sync state.
	require.EqualValues(t, 100, tableCount(t, db, "products"))

	meta, stateErr := NewStateStore(db).Get("abc-123")
	require.NoError(t, stateErr)
	require.Equal(t, model.SyncStatusFailed, meta.Status)
	require.NotNil(t, meta.LastError)
	require.Contains(t, *meta.LastError, "network drop")
}

func TestSyncDoubleFailureOriginalErrorWins(t *testing.T) {
	db := newTenantDB(t, "abc-123")

	err := db.Callback().Create().Before("gorm:create").Register("drop_batches", func(tx *gorm.DB) {
		if tx.Statement.Table == "products" {
			tx.AddError(errors.New("network drop"))
		}
	})
	require.NoError(t, err)

	// The first state update (in_progress) goes through; once the batch has
	// failed, recording the failure fails too.
	updates := 0
	err = db.Callback().Update().Before("gorm:update").Register("drop_state_updates", func(tx *gorm.DB) {
		if tx.Statement.Table != "syncmetadatas" {
			return
		}
		updates++
		if updates >= 2 {
			tx.AddError(errors.New("state store down"))
		}
	})
	require.NoError(t, err)

	core, observed := observer.New(zap.WarnLevel)
	s := NewSynchronizer(&fakeResolver{db: db}, 100, zap.New(core))

	count, err := s.Sync("abc-123", "", model.CollectionProducts, records(3))

	// The batch error reaches the caller; the failure to record it does not.
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Contains(t, err.Error(), "network drop")
	require.NotContains(t, err.Error(), "state store down")
	require.Equal(t, 0, count)

	// The swallowed secondary failure stays visible in the log stream.
	entries := observed.FilterMessage("could not record sync failure").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "abc-123", fields["tenant_id"])

	markErr, ok := fields["mark_error"].(error)
	require.True(t, ok)
	require.Contains(t, markErr.Error(), "state store down")

	cause, ok := fields["sync_error"].(error)
	require.True(t, ok)
	require.Contains(t, cause.Error(), "network drop")
}

func TestSyncStampsStateOnSuccess(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	_, err := s.Sync("abc-123", "", model.CollectionProducts, records(3))
	require.NoError(t, err)

	meta, err := NewStateStore(db).Get("abc-123")
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusSuccess, meta.Status)
	require.Nil(t, meta.LastError)
	require.NotNil(t, meta.LastSyncTimestamp)
	require.NotNil(t, meta.ProductsSyncedAt)
}

func TestSyncUnknownCollection(t *testing.T) {
	s := NewSynchronizer(&fakeResolver{}, 0, nil)

	_, err := s.Sync("abc-123", "", "invoices", records(1))
	require.ErrorIs(t, err, ErrInvalidCollection)
}

func TestSyncMissingRecordID(t *testing.T) {
	s := NewSynchronizer(&fakeResolver{}, 0, nil)

	_, err := s.Sync("abc-123", "", model.CollectionProducts, []map[string]interface{}{
		{"name": "no id here"},
	})
	require.ErrorIs(t, err, ErrMissingRecordID)
}

func TestSyncNotInitializedTenant(t *testing.T) {
	// Collection tables exist but the metadata row was never created.
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.SyncMetadata{}))
	require.NoError(t, db.Table("products").AutoMigrate(&model.SyncedRecord{}))

	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)
	_, err = s.Sync("abc-123", "", model.CollectionProducts, records(1))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestSyncAllOnlyTouchesPopulatedCollections(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	results, err := s.SyncAll("abc-123", "", map[string][]map[string]interface{}{
		model.CollectionProducts: records(5),
	})
	require.NoError(t, err)
	require.Equal(t, map[string]int{model.CollectionProducts: 5}, results)

	require.EqualValues(t, 0, tableCount(t, db, "transactions"))
	require.EqualValues(t, 0, tableCount(t, db, "users"))

	meta, err := NewStateStore(db).Get("abc-123")
	require.NoError(t, err)
	require.NotNil(t, meta.ProductsSyncedAt)
	require.Nil(t, meta.TransactionsSyncedAt)
	require.Nil(t, meta.UsersSyncedAt)
	require.Nil(t, meta.CategoriesSyncedAt)
	require.Nil(t, meta.SettingsSyncedAt)
}

func TestSyncAllRejectsUnknownCollection(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)

	_, err := s.SyncAll("abc-123", "", map[string][]map[string]interface{}{
		model.CollectionProducts: records(2),
		"invoices":               records(1),
	})
	require.ErrorIs(t, err, ErrInvalidCollection)

	// Rejected before anything was written.
	require.EqualValues(t, 0, tableCount(t, db, "products"))
}

func TestSyncAllAbortsOnFirstFailure(t *testing.T) {
	db := newTenantDB(t, "abc-123")
	require.NoError(t, db.Migrator().DropTable("users"))

	s := NewSynchronizer(&fakeResolver{db: db}, 0, nil)
	results, err := s.SyncAll("abc-123", "", map[string][]map[string]interface{}{
		model.CollectionProducts: records(3),
		model.CollectionUsers:    records(2),
		model.CollectionSettings: records(1),
	})

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, model.CollectionUsers, syncErr.Collection)

	// Products completed before the failure; settings was never reached.
	require.Equal(t, map[string]int{model.CollectionProducts: 3}, results)
	require.EqualValues(t, 0, tableCount(t, db, "settings"))
}

func TestSyncResolverErrorPassesThrough(t *testing.T) {
	s := NewSynchronizer(&fakeResolver{err: tenantdb.ErrNotConfigured}, 0, nil)

	_, err := s.Sync("abc-123", "", model.CollectionProducts, records(1))
	require.ErrorIs(t, err, tenantdb.ErrNotConfigured)
}

func TestSyncRedirectedTenantUpdatesCanonicalState(t *testing.T) {
	// Metadata belongs to the group's first-registered tenant; a redirected
	// caller must update that row, not look for its own.
	db := newTenantDB(t, "t1-aaa")
	s := NewSynchronizer(&fakeResolver{db: db, canonical: "t1-aaa"}, 0, nil)

	_, err := s.Sync("t2-bbb", "Acme", model.CollectionProducts, records(2))
	require.NoError(t, err)

	meta, err := NewStateStore(db).Get("t1-aaa")
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusSuccess, meta.Status)
	require.NotNil(t, meta.ProductsSyncedAt)
}
