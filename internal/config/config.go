// Package config loads bucketview settings from a YAML file, an optional
// .env file and the environment, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/koustreak/bucketview/internal/database"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/logger"
	"go.yaml.in/yaml/v3"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Store    filestore.Config `yaml:"store"`
	Log      logger.Config    `yaml:"log"`
	Browser  BrowserConfig    `yaml:"browser"`
	Activity database.Config  `yaml:"activity"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxUploadBytes caps multipart request bodies.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// RateLimit is the sustained requests per second allowed per client IP;
	// 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// ExposeCredentials makes GET /api/config return the secret key in
	// clear text, as the original browser did. Off by default.
	ExposeCredentials bool `yaml:"expose_credentials"`
}

// BrowserConfig tunes the listing snapshot, presigning and search.
type BrowserConfig struct {
	ListingTTL     time.Duration `yaml:"listing_ttl"`
	PresignDefault time.Duration `yaml:"presign_default"`
	PresignMax     time.Duration `yaml:"presign_max"`
	SearchLimit    int           `yaml:"search_limit"`
}

// Default returns a configuration that runs against an in-memory bucket.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3001",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  5 << 30,
			RateLimit:       20,
			RateBurst:       40,
		},
		Store: filestore.Config{
			Provider:      filestore.ProviderMemory,
			Region:        "us-east-1",
			DefaultBucket: "bucketview",
		},
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
		Browser: BrowserConfig{
			ListingTTL:     30 * time.Second,
			PresignDefault: time.Hour,
			PresignMax:     7 * 24 * time.Hour,
			SearchLimit:    200,
		},
		Activity: database.Config{
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
	}
}

// Load builds a Config from Default, the YAML file at path (skipped when
// path is empty), a .env file in the working directory if present, and
// the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "read config file", err)
		}
		if err := cfg.decode(raw); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "load .env", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "parse config file", err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, name+" is not a boolean", err)
		}
		*dst = b
		return nil
	}

	var provider, activityDriver string
	str("S3_PROVIDER", &provider)
	if provider != "" {
		c.Store.Provider = filestore.Provider(provider)
	}
	str("S3_ENDPOINT", &c.Store.Endpoint)
	str("S3_ACCESS_KEY_ID", &c.Store.AccessKey)
	str("S3_SECRET_ACCESS_KEY", &c.Store.SecretKey)
	str("S3_REGION", &c.Store.Region)
	str("S3_BUCKET", &c.Store.DefaultBucket)
	if err := boolean("S3_USE_SSL", &c.Store.UseSSL); err != nil {
		return err
	}
	if err := boolean("S3_FORCE_PATH_STYLE", &c.Store.UsePathStyle); err != nil {
		return err
	}

	str("BUCKETVIEW_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("ACTIVITY_DRIVER", &activityDriver)
	if activityDriver != "" {
		c.Activity.Driver = database.Driver(activityDriver)
	}
	str("ACTIVITY_DSN", &c.Activity.DSN)
	return nil
}

// Validate checks the store settings and that limits are usable.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindInvalidInput, "server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "server.max_upload_bytes must be positive")
	}
	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateBurst <= 0) {
		return errs.New(errs.ErrKindInvalidInput, "server.rate_burst must be positive when rate_limit is set")
	}
	if c.Browser.ListingTTL < 0 {
		return errs.New(errs.ErrKindInvalidInput, "browser.listing_ttl must not be negative")
	}
	if c.Browser.PresignDefault <= 0 || c.Browser.PresignMax < c.Browser.PresignDefault {
		return errs.New(errs.ErrKindInvalidInput, "browser.presign_default must be positive and not exceed presign_max")
	}
	if c.Browser.SearchLimit <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "browser.search_limit must be positive")
	}
	return nil
}
