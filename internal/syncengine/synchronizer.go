package syncengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ilyaseen19/krios-sub001/internal/model"
)

// DefaultBatchSize bounds per-call payload size against the store's
// write-batch limits.
const DefaultBatchSize = 100

// ConnectionResolver is the slice of the tenant database resolver the
// engine needs. Resolve returns the handle plus the effective tenant
// identity, which may differ from the caller's when a merchant group
// redirects to its canonical tenant.
type ConnectionResolver interface {
	Resolve(tenantID, merchantName string) (*gorm.DB, string, error)
	Exists(tenantID, merchantName string) (string, bool, error)
}

// Synchronizer performs idempotent, batched, progress-tracked
// synchronization of per-tenant record collections.
type Synchronizer struct {
	resolver  ConnectionResolver
	batchSize int
	log       *zap.Logger
}

// NewSynchronizer creates a synchronizer. A non-positive batchSize falls
// back to DefaultBatchSize.
func NewSynchronizer(resolver ConnectionResolver, batchSize int, log *zap.Logger) *Synchronizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		resolver:  resolver,
		batchSize: batchSize,
		log:       log,
	}
}

// Sync upserts the given records into one collection of the tenant's
// database in fixed-size sequential batches, moving the sync state through
// in_progress to success or failed. Batches already committed stay committed
// when a later batch fails; partial success is accepted, not rolled back.
func (s *Synchronizer) Sync(tenantID, merchantName, collection string, records []map[string]interface{}) (int, error) {
	if !model.IsValidCollection(collection) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	rows, err := toRows(records)
	if err != nil {
		return 0, err
	}

	db, effectiveTenant, err := s.resolver.Resolve(tenantID, merchantName)
	if err != nil {
		return 0, err
	}
	state := NewStateStore(db)

	if err := state.MarkInProgress(effectiveTenant, collection); err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return 0, err
		}
		s.recordFailure(state, effectiveTenant, collection, err)
		return 0, &SyncError{Collection: collection, Err: err}
	}

	count := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		err := db.Table(collection).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).
			Create(&batch).Error
		if err != nil {
			s.recordFailure(state, effectiveTenant, collection, err)
			return count, &SyncError{Collection: collection, Err: err}
		}
		count += len(batch)
	}

	if err := state.MarkSuccess(effectiveTenant); err != nil {
		s.recordFailure(state, effectiveTenant, collection, err)
		return count, &SyncError{Collection: collection, Err: err}
	}

	s.log.Info("collection synchronized",
		zap.String("tenant_id", effectiveTenant),
		zap.String("collection", collection),
		zap.Int("count", count))
	return count, nil
}

// SyncAll runs the per-collection procedure sequentially for every
// collection present in the payload, in fixed collection order. A payload
// key that is not a synced collection rejects the whole call before any
// collection is touched. A failure mid-run aborts the remaining collections;
// the counts synced so far are returned alongside the error.
func (s *Synchronizer) SyncAll(tenantID, merchantName string, payload map[string][]map[string]interface{}) (map[string]int, error) {
	for collection := range payload {
		if !model.IsValidCollection(collection) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
		}
	}

	results := make(map[string]int)
	for _, collection := range model.Collections {
		records, ok := payload[collection]
		if !ok || records == nil {
			continue
		}
		count, err := s.Sync(tenantID, merchantName, collection, records)
		if err != nil {
			return results, err
		}
		results[collection] = count
	}
	return results, nil
}

// Status returns the tenant's current sync metadata.
func (s *Synchronizer) Status(tenantID, merchantName string) (*model.SyncMetadata, error) {
	name, exists, err := s.resolver.Exists(tenantID, merchantName)
	if err != nil {
		return nil, err
	}
	if !exists {
		s.log.Debug("sync status requested for unknown database", zap.String("database", name))
		return nil, ErrNotInitialized
	}

	db, effectiveTenant, err := s.resolver.Resolve(tenantID, merchantName)
	if err != nil {
		return nil, err
	}
	return NewStateStore(db).Get(effectiveTenant)
}

// recordFailure persists the failure into sync state, best-effort. A failure
// to record the failure is logged and discarded; the original error wins.
func (s *Synchronizer) recordFailure(state *StateStore, tenantID, collection string, cause error) {
	if err := state.MarkFailed(tenantID, cause.Error()); err != nil {
		s.log.Warn("could not record sync failure",
			zap.String("tenant_id", tenantID),
			zap.String("collection", collection),
			zap.NamedError("mark_error", err),
			zap.NamedError("sync_error", cause))
	}
}

// toRows converts wire records into storable rows: the id field is hoisted
// into the primary-key column, any store-internal identity echoed back from
// a prior read is stripped, and duplicate ids within one call collapse to
// the last occurrence so a single bulk upsert never touches a row twice.
func toRows(records []map[string]interface{}) ([]model.SyncedRecord, error) {
	now := time.Now().UTC()
	rows := make([]model.SyncedRecord, 0, len(records))
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		id := recordID(rec["id"])
		if id == "" {
			return nil, fmt.Errorf("record %d: %w", i, ErrMissingRecordID)
		}

		data := make(model.JSONMap, len(rec))
		for k, v := range rec {
			if k == "id" || k == "_id" {
				continue
			}
			data[k] = v
		}

		row := model.SyncedRecord{ID: id, Data: data, SyncedAt: now}
		if j, ok := seen[id]; ok {
			rows[j] = row
			continue
		}
		seen[id] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

// recordID renders the externally-supplied id as a string. JSON numbers are
// accepted since callers are not required to quote numeric ids.
func recordID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}
