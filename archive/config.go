package archive

import (
	"context"
	"errors"
	"fmt"
)

// Backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config selects and configures the archive backend.
type Config struct {
	// Enabled turns archiving on. Off by default.
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Prefix is prepended to every key.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// Dir is the root directory of the local backend.
	Dir string   `yaml:"dir" mapstructure:"dir"`
	S3  S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config addresses a bucket on AWS or an S3-compatible service.
type S3Config struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Region string `yaml:"region" mapstructure:"region"`
	// Endpoint points at an S3-compatible service such as MinIO. Setting it
	// implies path-style addressing.
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.Dir == "" {
		c.Dir = "./data/archive"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks the selected backend's settings. A disabled archive is
// always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case BackendLocal:
		if c.Dir == "" {
			return errors.New("archive: dir is required for the local backend")
		}
	case BackendS3:
		var errs []error
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("bucket is required"))
		}
		if c.S3.Region == "" {
			errs = append(errs, errors.New("region is required"))
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, errors.New("access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("archive: invalid s3 config: %w", errors.Join(errs...))
		}
	default:
		return fmt.Errorf("archive: unsupported backend %q", c.Backend)
	}
	return nil
}

// Open builds the configured Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendS3:
		return NewS3(ctx, cfg.S3)
	default:
		return NewLocal(cfg.Dir)
	}
}
