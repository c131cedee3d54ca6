package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "tickflow" namespace for metrics.
	Namespace string

	// Labels are additional labels to add to all metrics.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: "tickflow",
		Labels:    nil,
	}
}

// Isolated returns an enabled configuration backed by a fresh Prometheus
// registry, along with that registry so it can be gathered or served.
func Isolated() (Config, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return Config{
		Enabled:  true,
		Registry: reg,
	}, reg
}
