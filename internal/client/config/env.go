package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment variable the CLI reads.
const EnvPrefix = "GOPHCAL_"

// loadDotEnv copies a .env file from the working directory into the process
// environment. Variables that are already set win; a missing file is fine.
func loadDotEnv() {
	_ = godotenv.Load()
}

type lookupFunc func(key string) (string, bool)

// parseEnv overlays cfg with GOPHCAL_* variables.
func parseEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	str("DATA_DIR", &cfg.DataDir)
	str("DATABASE_FILE", &cfg.DatabaseFile)
	str("DEVICE_NAME", &cfg.DeviceName)
	str("SUITE", &cfg.Suite)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("REMOTE_KIND", &cfg.Remote.Kind)
	str("REMOTE_DIR", &cfg.Remote.Dir)
	str("S3_BUCKET", &cfg.Remote.S3.Bucket)
	str("S3_PREFIX", &cfg.Remote.S3.Prefix)
	str("S3_REGION", &cfg.Remote.S3.Region)
	str("S3_ENDPOINT", &cfg.Remote.S3.Endpoint)
	str("S3_ACCESS_KEY_ID", &cfg.Remote.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &cfg.Remote.S3.SecretAccessKey)

	if v, ok := lookup(EnvPrefix + "SYNC_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSYNC_INTERVAL: %w", EnvPrefix, err)
		}
		cfg.SyncInterval = d
	}
	if v, ok := lookup(EnvPrefix + "S3_USE_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sS3_USE_PATH_STYLE: %w", EnvPrefix, err)
		}
		cfg.Remote.S3.UsePathStyle = b
	}
	return nil
}
