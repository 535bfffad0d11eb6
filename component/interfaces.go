package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed infrastructure component.
// The database, redis, the HTTP server, the event stream and the workflow
// runtime each implement this interface.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for the startup summary.
// Components that implement Describable return it to
// self-report how they are configured.
type Description struct {
	// Name is the human-readable display name (e.g., "HTTP Server", "Database").
	// If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "database", "server", "redis", "workflow", etc.
	Type string
	// Details is a human-readable one-liner shown in the startup summary.
	// Examples: "0.0.0.0:8080 routes=12", "localhost:6379 db=0 pool=10"
	Details string
}

// Describable is optionally implemented by components that report how
// they are configured.
type Describable interface {
	Describe() Description
}
