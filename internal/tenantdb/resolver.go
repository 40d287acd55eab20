package tenantdb

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ilyaseen19/krios-sub001/internal/model"
	"github.com/ilyaseen19/krios-sub001/pkg/config"
)

// Resolver maps a tenant identity (and optional merchant name) to a pooled
// connection handle for that tenant's isolated database, creating the
// database lazily on first use.
type Resolver struct {
	syncCfg *config.SyncConfig
	log     *zap.Logger

	catalog catalog
	open    func(dbName string) (*gorm.DB, error)

	mu      sync.Mutex
	handles map[string]*gorm.DB
}

// NewResolver connects to the server's maintenance database and returns a
// resolver. Fails with ErrNotConfigured when the base connection settings
// are unset, and with a ConnectionError when the server is unreachable.
func NewResolver(dbCfg *config.DBConfig, syncCfg *config.SyncConfig, log *zap.Logger) (*Resolver, error) {
	if dbCfg == nil || dbCfg.Host == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = zap.NewNop()
	}

	admin, err := openGorm(dbCfg.AdminDSN(), dbCfg)
	if err != nil {
		return nil, &ConnectionError{Op: "connect to " + dbCfg.AdminDB, Err: err}
	}

	return &Resolver{
		syncCfg: syncCfg,
		log:     log,
		catalog: &pgCatalog{admin: admin},
		open: func(dbName string) (*gorm.DB, error) {
			return openGorm(dbCfg.DSNForDatabase(dbName), dbCfg)
		},
		handles: make(map[string]*gorm.DB),
	}, nil
}

// openGorm opens a gorm connection with the configured pool settings.
func openGorm(dsn string, dbCfg *config.DBConfig) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: gormlogger.Default.LogMode(dbCfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	return db, nil
}

// DefaultPrefix returns the system database-name prefix.
func (r *Resolver) DefaultPrefix() string {
	return r.syncCfg.DefaultPrefix
}

// Locate computes the physical database name and the effective tenant
// identity for a caller-supplied pair. When a merchant name is given and its
// prefix already hosts tenant databases, the caller is redirected to the
// group's first-registered tenant identity: one business, one store.
// Discovery failures degrade to using the caller's identity rather than
// failing the request.
func (r *Resolver) Locate(tenantID, merchantName string) (string, string) {
	prefix := r.syncCfg.DefaultPrefix
	if merchantName != "" {
		if p := NormalizePrefix(merchantName); p != "" {
			prefix = p
		}

		ids, err := r.Discover(prefix)
		if err != nil {
			r.log.Warn("tenant discovery failed, falling back to caller identity",
				zap.String("prefix", prefix),
				zap.Error(err))
		} else if len(ids) > 0 {
			if ids[0] != tenantID {
				r.log.Info("redirecting to canonical tenant for merchant group",
					zap.String("merchant_prefix", prefix),
					zap.String("canonical_tenant_id", ids[0]))
			}
			tenantID = ids[0]
		}
	}

	return DatabaseName(prefix, tenantID), tenantID
}

// Resolve returns a handle to the tenant's database plus the effective
// tenant identity, provisioning the database on first use.
func (r *Resolver) Resolve(tenantID, merchantName string) (*gorm.DB, string, error) {
	if tenantID == "" {
		return nil, "", ErrMissingTenantID
	}

	name, effective := r.Locate(tenantID, merchantName)
	db, err := r.handleFor(name, effective)
	if err != nil {
		return nil, "", err
	}
	return db, effective, nil
}

// Exists reports whether the physical database for the pair has already been
// provisioned, without creating anything.
func (r *Resolver) Exists(tenantID, merchantName string) (string, bool, error) {
	if tenantID == "" {
		return "", false, ErrMissingTenantID
	}

	name, _ := r.Locate(tenantID, merchantName)

	r.mu.Lock()
	_, cached := r.handles[name]
	r.mu.Unlock()
	if cached {
		return name, true, nil
	}

	names, err := r.catalog.ListDatabases()
	if err != nil {
		return name, false, err
	}
	for _, n := range names {
		if n == name {
			return name, true, nil
		}
	}
	return name, false, nil
}

// handleFor returns the pooled handle for a physical database name, creating
// and provisioning the database when it does not exist yet.
func (r *Resolver) handleFor(name, tenantID string) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.handles[name]; ok {
		return db, nil
	}

	names, err := r.catalog.ListDatabases()
	if err != nil {
		return nil, err
	}
	exists := false
	for _, n := range names {
		if n == name {
			exists = true
			break
		}
	}

	if !exists {
		if err := r.catalog.CreateDatabase(name); err != nil {
			return nil, err
		}
		r.log.Info("created tenant database", zap.String("database", name))
	}

	db, err := r.open(name)
	if err != nil {
		return nil, &ConnectionError{Op: "connect to " + name, Err: err}
	}

	if err := provision(db, tenantID); err != nil {
		return nil, err
	}

	r.handles[name] = db
	return db, nil
}

// provision migrates the tenant database schema and seeds the sync metadata
// row on the database's first provisioning. The metadata row is the durable
// record of synchronization health for the tenant and is created exactly
// once per database.
func provision(db *gorm.DB, tenantID string) error {
	if err := db.AutoMigrate(&model.SyncMetadata{}); err != nil {
		return &ConnectionError{Op: "migrate syncmetadatas", Err: err}
	}
	for _, collection := range model.Collections {
		if err := db.Table(collection).AutoMigrate(&model.SyncedRecord{}); err != nil {
			return &ConnectionError{Op: "migrate " + collection, Err: err}
		}
	}

	var count int64
	if err := db.Model(&model.SyncMetadata{}).Count(&count).Error; err != nil {
		return &ConnectionError{Op: "read syncmetadatas", Err: err}
	}
	if count == 0 {
		meta := model.SyncMetadata{
			TenantID: tenantID,
			Status:   model.SyncStatusSuccess,
		}
		if err := db.Create(&meta).Error; err != nil {
			return &ConnectionError{Op: "seed syncmetadatas", Err: err}
		}
	}
	return nil
}
