package filestore

import (
	"github.com/koustreak/bucketview/internal/errs"
)

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
	ProviderS3    Provider = "s3"

	// ProviderMemory keeps objects in process memory (demos and tests).
	ProviderMemory Provider = "memory"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider `yaml:"provider"`

	// Endpoint is the storage server address.
	// MinIO accepts "host:port" or a URL; S3 accepts a URL or "" for AWS.
	Endpoint string `yaml:"endpoint"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"access_key"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secret_key"`

	// UseSSL controls whether TLS is used when Endpoint has no scheme.
	UseSSL bool `yaml:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region"`

	// DefaultBucket is the bucket bucketview manages.
	DefaultBucket string `yaml:"bucket"`

	// UsePathStyle forces path-style addressing on the S3 provider,
	// which most self-hosted S3-compatible servers need.
	UsePathStyle bool `yaml:"force_path_style"`
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMinIO:
		if c.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "minio provider requires an endpoint")
		}
	case ProviderS3, ProviderMemory:
	case "":
		return errs.New(errs.ErrKindInvalidInput, "storage provider is not set")
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown storage provider %q", c.Provider)
	}
	if c.DefaultBucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "bucket is not set")
	}
	return nil
}
