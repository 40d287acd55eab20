package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")

	conf, err := Load("sync")
	require.NoError(t, err)

	require.Equal(t, "sync", conf.ServiceName)
	require.Equal(t, "krios_", conf.Sync.DefaultPrefix)
	require.Equal(t, 100, conf.Sync.BatchSize)
	require.Equal(t, "postgres", conf.DB.AdminDB)

	// No ambient default for the database host: unset means unconfigured.
	require.Empty(t, conf.DB.Host)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("TENANT_DB_PREFIX", "shop_")
	t.Setenv("SYNC_BATCH_SIZE", "50")

	conf, err := Load("sync")
	require.NoError(t, err)
	require.Equal(t, "db.internal", conf.DB.Host)
	require.Equal(t, "shop_", conf.Sync.DefaultPrefix)
	require.Equal(t, 50, conf.Sync.BatchSize)
}

func TestDSNForDatabase(t *testing.T) {
	cfg := DBConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "secret",
		AdminDB:  "postgres",
		SSLMode:  "disable",
	}

	dsn := cfg.DSNForDatabase("krios_abc")
	require.Contains(t, dsn, "dbname=krios_abc")
	require.Contains(t, dsn, "host=localhost")

	require.Contains(t, cfg.AdminDSN(), "dbname=postgres")
}
