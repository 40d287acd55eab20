package tenantdb

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ilyaseen19/krios-sub001/internal/model"
)

// Discover scans the server catalog for tenant databases whose name starts
// with prefix and recovers the tenant identity each one hosts. Returns the
// identities in catalog listing order. A database that matches the prefix
// but has no readable sync metadata (corrupted or legacy) contributes a
// best-effort identity derived from its name instead of failing the scan.
func (r *Resolver) Discover(prefix string) ([]string, error) {
	names, err := r.catalog.ListDatabases()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		id := r.readTenantID(name)
		if id == "" {
			id = strings.TrimPrefix(name, prefix)
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// readTenantID opens the named database and reads the tenant identity from
// its sync metadata row. Returns "" when the metadata cannot be read.
func (r *Resolver) readTenantID(name string) string {
	r.mu.Lock()
	db, cached := r.handles[name]
	r.mu.Unlock()

	if !cached {
		opened, err := r.open(name)
		if err != nil {
			r.log.Debug("could not open tenant database during discovery",
				zap.String("database", name),
				zap.Error(err))
			return ""
		}
		db = opened
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}()
	}

	var meta model.SyncMetadata
	if err := db.First(&meta).Error; err != nil {
		r.log.Debug("tenant database has no readable sync metadata",
			zap.String("database", name),
			zap.Error(err))
		return ""
	}
	return meta.TenantID
}
