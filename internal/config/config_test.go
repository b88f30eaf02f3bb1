package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/chatrelay")
	t.Setenv("S3_ENDPOINT", "s3.local:9000")
	t.Setenv("S3_ACCESS_KEY", "access")
	t.Setenv("S3_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int32(16), cfg.DatabaseMaxConns)
	assert.Equal(t, int32(2), cfg.DatabaseMinConns)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 50, cfg.DailyMessageLimit)
	assert.Equal(t, 500, cfg.PremiumDailyMessageLimit)
	assert.Equal(t, 5, cfg.DailyFileUploadLimit)
	assert.Equal(t, "chat-attachments", cfg.AttachmentBucket)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_MAX_CONNS", "40")
	t.Setenv("DATABASE_MIN_CONNS", "8")
	t.Setenv("PUBLIC_BUCKETS", "chat-attachments,avatars")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int32(40), cfg.DatabaseMaxConns)
	assert.Equal(t, int32(8), cfg.DatabaseMinConns)
	assert.True(t, cfg.IsPublicBucket("chat-attachments"))
	assert.True(t, cfg.IsPublicBucket("avatars"))
	assert.False(t, cfg.IsPublicBucket("private"))
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	// t.Setenv registers the restore; unset on top of it so an ambient
	// DATABASE_URL cannot satisfy the required tag.
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("S3_ENDPOINT", "s3.local:9000")
	t.Setenv("S3_ACCESS_KEY", "access")
	t.Setenv("S3_SECRET_KEY", "secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestUpstreamKeyFallback(t *testing.T) {
	cfg := &Config{AppAPIKey: "app", DifyAPIKey: "legacy"}
	assert.Equal(t, "app", cfg.UpstreamKey())

	cfg.AppAPIKey = ""
	assert.Equal(t, "legacy", cfg.UpstreamKey())

	cfg.DifyAPIKey = ""
	assert.Equal(t, "", cfg.UpstreamKey())
}
