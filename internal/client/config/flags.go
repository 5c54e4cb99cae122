package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by RegisterFlags and the CLI.
const (
	FlagConfig       = "config"
	FlagDataDir      = "data-dir"
	FlagDeviceName   = "device"
	FlagSuite        = "suite"
	FlagLogLevel     = "log-level"
	FlagLogFormat    = "log-format"
	FlagSyncInterval = "sync-interval"
	FlagRemoteKind   = "remote"
	FlagRemoteDir    = "remote-dir"
	FlagS3Bucket     = "s3-bucket"
	FlagS3Prefix     = "s3-prefix"
	FlagS3Region     = "s3-region"
	FlagS3Endpoint   = "s3-endpoint"
	FlagS3PathStyle  = "s3-path-style"
)

// RegisterFlags declares the configuration flags on fs. Defaults shown in the
// help text come from LoadDefaults; only flags set explicitly override other
// sources.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "path to a JSON config file")
	fs.StringP(FlagDataDir, "d", d.DataDir, "directory holding the local database")
	fs.String(FlagDeviceName, d.DeviceName, "name of this device")
	fs.String(FlagSuite, d.Suite, "AEAD suite used for new keys (xchacha20poly1305, aes256gcm)")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(FlagLogFormat, d.LogFormat, "log format (text, json)")
	fs.Duration(FlagSyncInterval, d.SyncInterval, "interval between rounds of sync --watch")
	fs.String(FlagRemoteKind, d.Remote.Kind, "remote store kind (dir, s3)")
	fs.String(FlagRemoteDir, d.Remote.Dir, "shared directory used by the dir remote")
	fs.String(FlagS3Bucket, d.Remote.S3.Bucket, "bucket used by the s3 remote")
	fs.String(FlagS3Prefix, d.Remote.S3.Prefix, "key prefix inside the bucket")
	fs.String(FlagS3Region, d.Remote.S3.Region, "bucket region")
	fs.String(FlagS3Endpoint, d.Remote.S3.Endpoint, "custom S3 endpoint, e.g. a MinIO URL")
	fs.Bool(FlagS3PathStyle, d.Remote.S3.UsePathStyle, "use path-style bucket addressing")
}

// parseFlags overlays cfg with the flags that were set on the command line.
func parseFlags(cfg *Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	strs := map[string]*string{
		FlagDataDir:    &cfg.DataDir,
		FlagDeviceName: &cfg.DeviceName,
		FlagSuite:      &cfg.Suite,
		FlagLogLevel:   &cfg.LogLevel,
		FlagLogFormat:  &cfg.LogFormat,
		FlagRemoteKind: &cfg.Remote.Kind,
		FlagRemoteDir:  &cfg.Remote.Dir,
		FlagS3Bucket:   &cfg.Remote.S3.Bucket,
		FlagS3Prefix:   &cfg.Remote.S3.Prefix,
		FlagS3Region:   &cfg.Remote.S3.Region,
		FlagS3Endpoint: &cfg.Remote.S3.Endpoint,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed(FlagSyncInterval) {
		v, err := fs.GetDuration(FlagSyncInterval)
		if err != nil {
			return err
		}
		cfg.SyncInterval = v
	}
	if fs.Changed(FlagS3PathStyle) {
		v, err := fs.GetBool(FlagS3PathStyle)
		if err != nil {
			return err
		}
		cfg.Remote.S3.UsePathStyle = v
	}
	return nil
}
