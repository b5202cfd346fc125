package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "th", cfg.Reference.Locale)
	assert.Equal(t, "@every 10m", cfg.Reference.RefreshSchedule)
	assert.Equal(t, int64(100<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 12*time.Hour, cfg.Security.SessionTTL)
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000, "allowed_origins": ["https://portal.example.com"]},
		"database": {"host": "db.internal", "db_name": "portal"},
		"storage": {"bucket": "files", "use_path_style": true},
		"security": {"session_secret": "`+testSecret+`"}
	}`), 0o600))

	t.Setenv("DATABASE_HOST", "db.override")
	t.Setenv("ADMIN_PASSWORD", "letmein")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SERVER_PUBLIC_URL", "https://portal.example.com")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "portal", cfg.Database.DBName)
	assert.Equal(t, "files", cfg.Storage.Bucket)
	assert.True(t, cfg.Storage.UsePathStyle)
	assert.Equal(t, "letmein", cfg.Security.AdminPassword)
	assert.Equal(t, 30*time.Minute, cfg.Security.SessionTTL)
	assert.Equal(t, "https://portal.example.com", cfg.Server.PublicURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.GetServerAddr())
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "portal", Password: "pw", DBName: "projects", SSLMode: "require"}
	assert.Equal(t, "postgres://portal:pw@db:5432/projects?sslmode=require", db.GetDatabaseURL())
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	t.Run("missing session secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("short session secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "short")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", testSecret)
		t.Setenv("SERVER_PORT", "eighty")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", testSecret)
		t.Setenv("SESSION_TTL", "a week")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("broken file", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", testSecret)
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
