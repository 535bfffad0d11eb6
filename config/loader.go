package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Validatable is implemented by config structs that fill their own defaults
// and check themselves after unmarshalling.
type Validatable interface {
	ApplyDefaults()
	Validate() error
}

type options struct {
	fs    FileSystem
	files Files
}

// Option customizes Load.
type Option func(*options)

// WithFileSystem sets the filesystem used to resolve files.
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) Option {
	return func(o *options) { o.files.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) Option {
	return func(o *options) { o.files.EnvFile = path }
}

// Load reads configuration for serviceName into cfg. When cfg implements
// Validatable, defaults are applied and the result validated.
func Load(serviceName string, cfg interface{}, opts ...Option) error {
	o := options{fs: OSFileSystem{}}
	for _, opt := range opts {
		opt(&o)
	}
	files := Resolve(o.fs, serviceName, o.files)

	v := viper.New()
	if files.ConfigFile != "" && o.fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
		}
	}
	if files.EnvFile != "" && o.fs.Exists(files.EnvFile) {
		if err := o.fs.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", files.EnvFile, err)
		}
	}
	v.AutomaticEnv()
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config for %s: %w", serviceName, err)
	}

	if vc, ok := cfg.(Validatable); ok {
		vc.ApplyDefaults()
		if err := vc.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// bindEnv sets every KEY=value pair under each nested key it could stand for.
func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, k := range envKeyVariants(key) {
			v.Set(k, value)
		}
	}
}

// envKeyVariants expands an env var name into the dotted keys it may target.
//
//	SCHEDULE_MAX_ACTIVE_RUNS -> schedule_max_active_runs, schedule.max.active.runs,
//	                            schedule.max_active_runs, schedule.max.active_runs, ...
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 {
		return []string{lower}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(lower)
	add(strings.Join(parts, "."))
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
	}
	return out
}
