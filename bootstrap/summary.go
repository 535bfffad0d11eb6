package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/caseflow/component"
	"github.com/kbukum/caseflow/logger"
)

// logSummary logs one line per component with its description and health,
// then the total startup time.
func (a *App[C]) logSummary(ctx context.Context, took time.Duration) {
	health := make(map[string]component.Health)
	for _, h := range a.Components.HealthAll(ctx) {
		health[h.Name] = h
	}
	for _, name := range a.Components.Names() {
		c := a.Components.Get(name)
		fields := logger.Fields(logger.FieldComponent, name, logger.FieldStatus, string(health[name].Status))
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name == "" {
				desc.Name = name
			}
			fields["display"] = desc.Name
			fields["type"] = desc.Type
			fields["details"] = desc.Details
		}
		a.Logger.Info("component ready", fields)
	}
	a.Logger.Info("application started", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		logger.FieldDuration, took.Milliseconds(),
	))
}
