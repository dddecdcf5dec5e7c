package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "community-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, "data/community.db", cfg.SQLite.Path)
	assert.Equal(t, "data", cfg.Snapshot.Dir)
	assert.Equal(t, 64, cfg.Snapshot.QueueDepth)
	assert.Equal(t, 60*time.Second, cfg.Redis.StatsTTL())
	assert.Empty(t, cfg.Gateway.AdminUserIDs)
}

func TestLoadAdminUserIDs(t *testing.T) {
	t.Setenv("ADMIN_USER_IDS", "100, 200,300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, cfg.Gateway.AdminUserIDs)
}

func TestLoadInvalidAdminUserIDs(t *testing.T) {
	t.Setenv("ADMIN_USER_IDS", "100,abc")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.App.Addr())
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)
	assert.Equal(t, 3*time.Second, cfg.Gateway.RequestTimeout)
}
