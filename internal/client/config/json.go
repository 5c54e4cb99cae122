package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophcal/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds.
type JsonConfig struct {
	DataDir      string         `json:"data_dir"`
	DatabaseFile string         `json:"database_file"`
	DeviceName   string         `json:"device_name"`
	Suite        string         `json:"suite"`
	LogLevel     string         `json:"log_level"`
	LogFormat    string         `json:"log_format"`
	SyncInterval timex.Duration `json:"sync_interval"`
	Remote       JsonRemote     `json:"remote"`
}

type JsonRemote struct {
	Kind string `json:"kind"`
	Dir  string `json:"dir"`
	S3   JsonS3 `json:"s3"`
}

type JsonS3 struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style"`
}

// parseJSON overlays cfg with values from the JSON file at path. Keys absent
// from the file keep their current value. An empty path is a no-op.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	jc := toJSON(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fromJSON(cfg, jc)
	return nil
}

func toJSON(c *Config) JsonConfig {
	return JsonConfig{
		DataDir:      c.DataDir,
		DatabaseFile: c.DatabaseFile,
		DeviceName:   c.DeviceName,
		Suite:        c.Suite,
		LogLevel:     c.LogLevel,
		LogFormat:    c.LogFormat,
		SyncInterval: timex.Duration{Duration: c.SyncInterval},
		Remote: JsonRemote{
			Kind: c.Remote.Kind,
			Dir:  c.Remote.Dir,
			S3:   JsonS3(c.Remote.S3),
		},
	}
}

func fromJSON(c *Config, jc JsonConfig) {
	c.DataDir = jc.DataDir
	c.DatabaseFile = jc.DatabaseFile
	c.DeviceName = jc.DeviceName
	c.Suite = jc.Suite
	c.LogLevel = jc.LogLevel
	c.LogFormat = jc.LogFormat
	c.SyncInterval = jc.SyncInterval.Duration
	c.Remote = Remote{Kind: jc.Remote.Kind, Dir: jc.Remote.Dir, S3: S3(jc.Remote.S3)}
}
