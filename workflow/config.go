package workflow

import (
	"fmt"
	"time"

	"github.com/kbukum/caseflow/archive"
	"github.com/kbukum/caseflow/config"
	"github.com/kbukum/caseflow/dag"
	"github.com/kbukum/caseflow/database"
	"github.com/kbukum/caseflow/fetcher"
	"github.com/kbukum/caseflow/httpclient"
	"github.com/kbukum/caseflow/kafka"
	"github.com/kbukum/caseflow/loader"
	"github.com/kbukum/caseflow/observability"
	"github.com/kbukum/caseflow/redis"
	"github.com/kbukum/caseflow/scheduler"
	"github.com/kbukum/caseflow/sensor"
	"github.com/kbukum/caseflow/server"
)

// Handoff backends.
const (
	HandoffMemory = "memory"
	HandoffRedis  = "redis"
)

// Config is the full caseflow configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Handoff       HandoffConfig        `yaml:"handoff" mapstructure:"handoff"`
	HTTP          httpclient.Config    `yaml:"http" mapstructure:"http"`
	Sensors       SensorsConfig        `yaml:"sensors" mapstructure:"sensors"`
	Fetch         fetcher.Config       `yaml:"fetch" mapstructure:"fetch"`
	Load          loader.Config        `yaml:"load" mapstructure:"load"`
	Tasks         TasksConfig          `yaml:"tasks" mapstructure:"tasks"`
	Scheduler     scheduler.Config     `yaml:"scheduler" mapstructure:"scheduler"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Events        EventsConfig         `yaml:"events" mapstructure:"events"`
	Archive       archive.Config       `yaml:"archive" mapstructure:"archive"`
}

// EventsConfig controls where run lifecycle events go. The SSE stream is
// served whenever the API is; Kafka is opt-in.
type EventsConfig struct {
	// KeepAlive is the SSE comment interval.
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive"`
	Kafka     kafka.Config  `yaml:"kafka" mapstructure:"kafka"`
}

// HandoffConfig selects where batches wait between fetch and load.
type HandoffConfig struct {
	// Backend is "memory" or "redis".
	Backend string        `yaml:"backend" mapstructure:"backend"`
	Prefix  string        `yaml:"prefix" mapstructure:"prefix"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// SensorsConfig configures the two readiness checks.
type SensorsConfig struct {
	// API polls the source endpoint. URL defaults to the fetch URL.
	API APISensorConfig `yaml:"api" mapstructure:"api"`
	// Store polls the health marker collection.
	Store StoreSensorConfig `yaml:"store" mapstructure:"store"`
}

// APISensorConfig is the source reachability check.
type APISensorConfig struct {
	sensor.Config `yaml:",inline" mapstructure:",squash"`
	URL           string `yaml:"url" mapstructure:"url"`
}

// StoreSensorConfig is the document store health check.
type StoreSensorConfig struct {
	sensor.Config `yaml:",inline" mapstructure:",squash"`
	Collection    string         `yaml:"collection" mapstructure:"collection"`
	Filter        map[string]any `yaml:"filter" mapstructure:"filter"`
}

// TasksConfig holds per-task retry policy.
type TasksConfig struct {
	MaxParallel int        `yaml:"max_parallel" mapstructure:"max_parallel"`
	CheckAPI    dag.Policy `yaml:"check_api" mapstructure:"check_api"`
	CheckDB     dag.Policy `yaml:"check_db_connection" mapstructure:"check_db_connection"`
	GetData     dag.Policy `yaml:"get_data" mapstructure:"get_data"`
	InsertData  dag.Policy `yaml:"insert_data" mapstructure:"insert_data"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.Fetch.ApplyDefaults()
	c.Load.ApplyDefaults()
	c.Scheduler.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Events.Kafka.ApplyDefaults()
	c.Archive.ApplyDefaults()
	if c.Events.KeepAlive <= 0 {
		c.Events.KeepAlive = 30 * time.Second
	}

	if c.Handoff.Backend == "" {
		c.Handoff.Backend = HandoffMemory
	}
	if c.Handoff.Prefix == "" {
		c.Handoff.Prefix = "caseflow:handoff"
	}

	c.Sensors.API.Config.ApplyDefaults()
	if c.Sensors.API.URL == "" {
		c.Sensors.API.URL = c.Fetch.URL
	}
	c.Sensors.Store.Config.ApplyDefaults()
	if c.Sensors.Store.Collection == "" {
		c.Sensors.Store.Collection = "healthcheck"
	}
	if len(c.Sensors.Store.Filter) == 0 {
		c.Sensors.Store.Filter = map[string]any{"checked": true}
	}

	c.Tasks.CheckAPI = sensorPolicy(c.Tasks.CheckAPI, c.Sensors.API.Config)
	c.Tasks.CheckDB = sensorPolicy(c.Tasks.CheckDB, c.Sensors.Store.Config)
	c.Tasks.GetData = withDefaults(c.Tasks.GetData, dag.Policy{
		MaxAttempts: 6, Timeout: 2 * time.Minute, InitialBackoff: 5 * time.Second, MaxBackoff: 2 * time.Minute,
	})
	c.Tasks.InsertData = withDefaults(c.Tasks.InsertData, dag.Policy{
		MaxAttempts: 3, Timeout: 5 * time.Minute, InitialBackoff: 5 * time.Second, MaxBackoff: time.Minute,
	})
}

// sensorPolicy gives a sensor task one retry for faults and an attempt
// timeout that outlasts the poll window.
func sensorPolicy(p dag.Policy, s sensor.Config) dag.Policy {
	return withDefaults(p, dag.Policy{
		MaxAttempts:    2,
		Timeout:        s.Timeout + 2*s.Interval,
		InitialBackoff: s.Interval,
	})
}

func withDefaults(p, d dag.Policy) dag.Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	p.ApplyDefaults()
	return p
}

// Validate checks every section.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"service", &c.ServiceConfig},
		{"database", &c.Database},
		{"http", &c.HTTP},
		{"fetch", &c.Fetch},
		{"load", &c.Load},
		{"scheduler", &c.Scheduler},
		{"server", &c.Server},
		{"observability", &c.Observability},
		{"events.kafka", &c.Events.Kafka},
		{"archive", &c.Archive},
		{"sensors.api", &c.Sensors.API.Config},
		{"sensors.store", &c.Sensors.Store.Config},
		{"tasks.check_api", &c.Tasks.CheckAPI},
		{"tasks.check_db_connection", &c.Tasks.CheckDB},
		{"tasks.get_data", &c.Tasks.GetData},
		{"tasks.insert_data", &c.Tasks.InsertData},
	}
	for _, chk := range checks {
		if err := chk.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	switch c.Handoff.Backend {
	case HandoffMemory:
	case HandoffRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	default:
		return fmt.Errorf("handoff: backend must be memory or redis (got: %s)", c.Handoff.Backend)
	}
	return nil
}

// Load reads the configuration for serviceName.
func Load(serviceName string, opts ...config.Option) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config with every default applied.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
