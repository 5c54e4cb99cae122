package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParseEnv(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	err := parseEnv(&cfg, mapLookup(map[string]string{
		"GOPHCAL_DEVICE_NAME":          "phone",
		"GOPHCAL_SYNC_INTERVAL":        "2m",
		"GOPHCAL_REMOTE_KIND":          "s3",
		"GOPHCAL_S3_BUCKET":            "cal",
		"GOPHCAL_S3_SECRET_ACCESS_KEY": "secret",
		"GOPHCAL_S3_USE_PATH_STYLE":    "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "phone", cfg.DeviceName)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "s3", cfg.Remote.Kind)
	assert.Equal(t, "cal", cfg.Remote.S3.Bucket)
	assert.Equal(t, "secret", cfg.Remote.S3.SecretAccessKey)
	assert.True(t, cfg.Remote.S3.UsePathStyle)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParseEnv_Errors(t *testing.T) {
	tests := map[string]string{
		"GOPHCAL_SYNC_INTERVAL":     "often",
		"GOPHCAL_S3_USE_PATH_STYLE": "maybe",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			var cfg Config
			require.Error(t, parseEnv(&cfg, mapLookup(map[string]string{key: val})))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOPHCAL_DEVICE_NAME=from-dotenv\n"), 0o600))

	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })

	// Register the variable with t.Setenv so it is restored after the test,
	// then clear it so the .env file is the only source.
	t.Setenv("GOPHCAL_DEVICE_NAME", "")
	require.NoError(t, os.Unsetenv("GOPHCAL_DEVICE_NAME"))

	loadDotEnv()

	v, ok := os.LookupEnv("GOPHCAL_DEVICE_NAME")
	require.True(t, ok)
	assert.Equal(t, "from-dotenv", v)
}
