package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/caseflow/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// Report is the body of /health and /ready.
type Report struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Timestamp  string             `json:"timestamp"`
	Components []component.Health `json:"components,omitempty"`
	Failing    []string           `json:"failing,omitempty"`
}

// Rollup folds component statuses into one. Any unhealthy component makes
// the service unhealthy; otherwise any degraded one makes it degraded.
func Rollup(components []component.Health) (component.HealthStatus, []string) {
	status := component.StatusHealthy
	var failing []string
	for _, ch := range components {
		switch ch.Status {
		case component.StatusUnhealthy:
			status = component.StatusUnhealthy
			failing = append(failing, ch.Name)
		case component.StatusDegraded:
			if status != component.StatusUnhealthy {
				status = component.StatusDegraded
			}
		}
	}
	return status, failing
}

func check(c *gin.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(c.Request.Context())
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// Health reports overall service health with every component listed.
// A degraded service still answers 200.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := check(c, checker)
		status, failing := Rollup(components)

		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, Report{
			Status:     string(status),
			Service:    serviceName,
			Timestamp:  now(),
			Components: components,
			Failing:    failing,
		})
	}
}

// Readiness answers 503 while any component a run depends on is unhealthy.
// Unlike Health it omits the per-component detail.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, failing := Rollup(check(c, checker))

		report := Report{Status: "ready", Service: serviceName, Timestamp: now(), Failing: failing}
		code := http.StatusOK
		if status == component.StatusUnhealthy {
			report.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}
