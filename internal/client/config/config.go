package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
)

// Config holds runtime settings for the gophcal CLI.
//
// Units: SyncInterval is a time.Duration (e.g., 30*time.Second).
type Config struct {
	DataDir      string        `validate:"required"`
	DatabaseFile string        `validate:"required"`
	DeviceName   string        `validate:"required"`
	Suite        string        `validate:"omitempty,oneof=xchacha20poly1305 aes256gcm"`
	LogLevel     string        `validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat    string        `validate:"oneof=text json"`
	SyncInterval time.Duration `validate:"gt=0"`
	Remote       Remote
}

// Remote selects and configures the blob store devices exchange data through.
type Remote struct {
	Kind string `validate:"oneof=dir s3"`
	Dir  string `validate:"required_if=Kind dir"`
	S3   S3
}

type S3 struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string `validate:"omitempty,url"`
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = ".gophcal"
	c.DatabaseFile = "gophcal.db"
	c.DeviceName = defaultDeviceName()
	c.Suite = "xchacha20poly1305"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.SyncInterval = 30 * time.Second
	c.Remote = Remote{Kind: "dir", S3: S3{Region: "us-east-1"}}
}

func defaultDeviceName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "device"
}

// DatabasePath is where the local SQLite store lives.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.DatabaseFile) {
		return c.DatabaseFile
	}
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

var validate = validator.New()

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: config: %w", common.ErrValidation, err)
	}
	if c.Remote.Kind == "s3" && c.Remote.S3.Bucket == "" {
		return fmt.Errorf("%w: config: s3 remote needs a bucket", common.ErrValidation)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags that were set
// explicitly. Later sources take precedence over earlier ones.
//
// fs must have been populated with RegisterFlags and parsed.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	loadDotEnv()

	path, err := configPath(fs)
	if err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configPath(fs *pflag.FlagSet) (string, error) {
	if fs != nil && fs.Changed(FlagConfig) {
		return fs.GetString(FlagConfig)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "CONFIG"); ok {
		return v, nil
	}
	return "", nil
}
