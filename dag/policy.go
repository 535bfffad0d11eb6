package dag

import (
	"fmt"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/resilience"
)

// Policy bounds how a node is attempted.
type Policy struct {
	// MaxAttempts counts the first attempt. Defaults to 1.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// Timeout bounds a single attempt. Defaults to 10m.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter"`
}

// ApplyDefaults fills unset fields.
func (p *Policy) ApplyDefaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Minute
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = time.Minute
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
}

// Validate rejects out-of-range values.
func (p *Policy) Validate() error {
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0,1], got %v", p.Jitter)
	}
	if p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max_backoff %s is below initial_backoff %s", p.MaxBackoff, p.InitialBackoff)
	}
	return nil
}

// retryConfig maps the policy onto resilience.Retry. Only retryable
// AppErrors and foreign errors are attempted again.
func (p Policy) retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
		BackoffFactor:  p.BackoffFactor,
		Jitter:         p.Jitter,
		RetryIf:        apperrors.IsRetryable,
	}
}
