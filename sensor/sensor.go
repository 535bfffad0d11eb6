package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/logger"
)

// Check is a side-effect-free readiness check. It returns false, nil while
// the condition does not hold yet and a non-nil error on a fault.
type Check func(ctx context.Context) (bool, error)

// Outcome is how a poll ended.
type Outcome string

const (
	Ready     Outcome = "ready"
	TimedOut  Outcome = "timed_out"
	Errored   Outcome = "errored"
	Cancelled Outcome = "cancelled"
)

// State is a poll state.
type State string

const (
	StateProbing State = "probing"
	StateWaiting State = "waiting"
)

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Config sets the poll cadence.
type Config struct {
	// Interval is the minimum gap between two checks.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Timeout is the poll window measured from the first check.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults uses a 5s interval and a 100s window.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 100 * time.Second
	}
}

// Validate checks the cadence is usable.
func (c *Config) Validate() error {
	if c.Interval <= 0 || c.Timeout <= 0 {
		return fmt.Errorf("sensor interval and timeout must be positive")
	}
	if c.Interval > c.Timeout {
		return fmt.Errorf("sensor interval %s exceeds timeout %s", c.Interval, c.Timeout)
	}
	return nil
}

// Sensor polls one Check.
type Sensor struct {
	Name  string
	Check Check
	Config
	Clock Clock
	Log   *logger.Logger
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// Result describes a finished poll.
type Result struct {
	Outcome Outcome
	Checks  int
	Elapsed time.Duration
	// Err is the check fault for Errored.
	Err error
}

// Poll runs the check under cfg with the system clock.
func Poll(ctx context.Context, name string, check Check, cfg Config) (Outcome, error) {
	s := &Sensor{Name: name, Check: check, Config: cfg}
	res := s.Run(ctx)
	return res.Outcome, s.errorFor(ctx, res)
}

// Wait polls until the outcome is known and converts it into an error:
// nil for Ready, SENSOR_TIMEOUT, SENSOR_ERROR or CANCELLED otherwise.
func (s *Sensor) Wait(ctx context.Context) error {
	return s.errorFor(ctx, s.Run(ctx))
}

func (s *Sensor) errorFor(ctx context.Context, res Result) error {
	switch res.Outcome {
	case Ready:
		return nil
	case TimedOut:
		return apperrors.SensorTimeout(s.Name, s.Timeout).
			WithDetail("checks", res.Checks)
	case Errored:
		return apperrors.SensorError(s.Name, res.Err)
	default:
		return apperrors.Cancelled(context.Cause(ctx))
	}
}

// Run drives the state machine to a terminal outcome.
func (s *Sensor) Run(ctx context.Context) Result {
	s.Config.ApplyDefaults()
	clock := s.Clock
	if clock == nil {
		clock = SystemClock
	}
	log := s.Log
	if log == nil {
		log = logger.NewNop()
	}

	start := clock.Now()
	res := Result{}
	state := StateProbing
	move := func(to State) {
		if s.OnTransition != nil {
			s.OnTransition(state, to)
		}
		state = to
	}
	done := func(o Outcome) Result {
		res.Outcome = o
		res.Elapsed = clock.Now().Sub(start)
		log.Debug("sensor finished", logger.Fields("sensor", s.Name, "outcome", string(o), "checks", res.Checks, logger.FieldDuration, res.Elapsed.Milliseconds()))
		return res
	}

	for {
		if ctx.Err() != nil {
			return done(Cancelled)
		}

		switch state {
		case StateProbing:
			ok, err := s.check(ctx, start, clock)
			res.Checks++
			elapsed := clock.Now().Sub(start)
			switch {
			case ctx.Err() != nil:
				return done(Cancelled)
			case err != nil && elapsed > s.Timeout:
				return done(TimedOut)
			case err != nil:
				res.Err = err
				return done(Errored)
			case ok:
				return done(Ready)
			case elapsed > s.Timeout:
				return done(TimedOut)
			}
			log.Debug("sensor not ready", logger.Fields("sensor", s.Name, "checks", res.Checks))
			move(StateWaiting)

		case StateWaiting:
			select {
			case <-ctx.Done():
				return done(Cancelled)
			case <-clock.After(s.Interval):
				move(StateProbing)
			}
		}
	}
}

// check runs one check bounded by what is left of the window, and never
// less than one interval, so a hung check cannot outlive the poll.
func (s *Sensor) check(ctx context.Context, start time.Time, clock Clock) (bool, error) {
	remaining := s.Timeout - clock.Now().Sub(start)
	if remaining < s.Interval {
		remaining = s.Interval
	}
	pctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	ok, err := s.Check(pctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, fmt.Errorf("check exceeded poll window: %w", err)
	}
	return ok, err
}
