package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env
	for _, k := range []string{"PORT", "DATABASE_URL", "JWT_SECRET", "UPLOADEE_TIMEOUT", "MAX_UPLOAD_BYTES", "STORAGE_ENDPOINT"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://www.upload.ee/", cfg.UploadeeBaseURL)
	assert.Equal(t, 10*time.Second, cfg.UploadeeTimeout)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	assert.Equal(t, int64(1), cfg.MaxConcurrentUploads)
	assert.False(t, cfg.HistoryEnabled())
	assert.False(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/relay")
	t.Setenv("UPLOADEE_TIMEOUT", "30s")
	t.Setenv("MAX_CONCURRENT_UPLOADS", "4")
	t.Setenv("STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("STORAGE_USE_SSL", "true")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.HistoryEnabled())
	assert.True(t, cfg.ArchiveEnabled())
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, 30*time.Second, cfg.UploadeeTimeout)
	assert.Equal(t, int64(4), cfg.MaxConcurrentUploads)
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("UPLOADEE_TIMEOUT", "soon")
	t.Setenv("MAX_UPLOAD_BYTES", "-5")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.UploadeeTimeout)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	assert.Equal(t, []string{
		"no .env file found, reading from environment",
		`invalid UPLOADEE_TIMEOUT="soon", using 10s`,
		`invalid MAX_UPLOAD_BYTES="-5", using 104857600`,
	}, cfg.Warnings)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("UPLOADEE_BASE_URL=http://mirror.test/\n"), 0o600))
	chdir(t, dir)
	t.Setenv("UPLOADEE_BASE_URL", "")
	os.Unsetenv("UPLOADEE_BASE_URL")

	cfg := Load()
	assert.Equal(t, "http://mirror.test/", cfg.UploadeeBaseURL)
	assert.Empty(t, cfg.Warnings)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
