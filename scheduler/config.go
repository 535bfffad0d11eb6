package scheduler

import (
	"fmt"
	"strings"
	"time"
	// Location names must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// DefaultDAGID names the case ingestion workflow.
const DefaultDAGID = "covid_case_data_process"

// Config controls when runs are created.
type Config struct {
	DAGID string `yaml:"dag_id" mapstructure:"dag_id"`
	// Schedule is a standard cron expression or descriptor.
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	// Location is the IANA zone the schedule is evaluated in.
	Location      string `yaml:"location" mapstructure:"location"`
	MaxActiveRuns int    `yaml:"max_active_runs" mapstructure:"max_active_runs"`
	// Catchup must stay false; missed intervals are never run.
	Catchup bool `yaml:"catchup" mapstructure:"catchup"`
	// RunTimeout bounds a whole run.
	RunTimeout time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
}

// ApplyDefaults sets a daily UTC schedule with three active runs.
func (c *Config) ApplyDefaults() {
	if c.DAGID == "" {
		c.DAGID = DefaultDAGID
	}
	if c.Schedule == "" {
		c.Schedule = "@daily"
	}
	if c.Location == "" {
		c.Location = "UTC"
	}
	if c.MaxActiveRuns <= 0 {
		c.MaxActiveRuns = 3
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 6 * time.Hour
	}
}

// Validate parses the schedule and rejects catch-up.
func (c *Config) Validate() error {
	if c.Catchup {
		return fmt.Errorf("scheduler: catchup is not supported")
	}
	if _, _, err := c.parse(); err != nil {
		return err
	}
	return nil
}

func (c *Config) parse() (cron.Schedule, *time.Location, error) {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: location %q: %w", c.Location, err)
	}
	spec := c.Schedule
	if !strings.HasPrefix(spec, "CRON_TZ=") && !strings.HasPrefix(spec, "TZ=") {
		spec = "CRON_TZ=" + loc.String() + " " + spec
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: schedule %q: %w", c.Schedule, err)
	}
	return sched, loc, nil
}
