package tenantdb

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgDuplicateDatabase is the SQLSTATE reported when a database already
// exists. Concurrent creators of the same tenant database race on CREATE
// DATABASE; the loser treats this code as success.
const pgDuplicateDatabase = "42P04"

// catalog abstracts the server-wide database catalog so tests can fake it.
type catalog interface {
	ListDatabases() ([]string, error)
	CreateDatabase(name string) error
}

// pgCatalog lists and creates databases through a connection to the server's
// maintenance database.
type pgCatalog struct {
	admin *gorm.DB
}

func (c *pgCatalog) ListDatabases() ([]string, error) {
	var names []string
	err := c.admin.Raw("SELECT datname FROM pg_database WHERE datistemplate = false").Scan(&names).Error
	if err != nil {
		return nil, &ConnectionError{Op: "list databases", Err: err}
	}
	return names, nil
}

func (c *pgCatalog) CreateDatabase(name string) error {
	// CREATE DATABASE does not support bind parameters; the name is
	// derived from sanitized inputs and quoted as an identifier.
	err := c.admin.Exec(fmt.Sprintf(`CREATE DATABASE %q`, name)).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return nil
		}
		return &ConnectionError{Op: "create database " + name, Err: err}
	}
	return nil
}
