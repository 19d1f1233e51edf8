package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, "root:root@tcp(localhost:3306)/muzz?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DB.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "50051", cfg.GRPC.Port)
	assert.Equal(t, 20, cfg.Discovery.PageSize)
	assert.Equal(t, "everyone", cfg.Discovery.UnsetGenderPolicy)
	assert.Equal(t, 3600, cfg.Entitlement.CacheTTLSeconds)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_SOURCE", "true")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DISCOVERY_UNSET_GENDER_POLICY", "unset")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "host=db.internal port=5432")
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Log.Source)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "unset", cfg.Discovery.UnsetGenderPolicy)
}

func TestLoad_ExplicitDSNWins(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:test.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file:test.db", cfg.DB.DSN)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connect.yml")
	require.NoError(t, os.WriteFile(path, []byte("grpc:\n  port: \"6000\"\nratelimit:\n  burst: 5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "6000", cfg.GRPC.Port)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}
