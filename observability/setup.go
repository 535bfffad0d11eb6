package observability

import (
	"context"
	"errors"
)

// Setup installs tracer and meter providers when cfg.Enabled. The returned
// function flushes and shuts both down; it is a no-op when disabled.
func Setup(ctx context.Context, cfg Config, info ServiceInfo) (func(context.Context) error, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tp, err := InitTracer(ctx, cfg, info)
	if err != nil {
		return nil, err
	}
	mp, err := InitMeter(ctx, cfg, info)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
