package metric

import "fmt"

// Config defines the configuration for the metrics server.
type Config struct {
	Port int    // Port for metrics server
	Path string // Path for metrics endpoint
}

// Default values for metrics configuration.
const (
	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
)

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Port)
	}
	if c.Path == "" {
		return fmt.Errorf("metrics path must not be empty")
	}
	return nil
}

// IsSame checks if the config is the same as the other config.
func (c Config) IsSame(other Config) bool {
	return c.Port == other.Port && c.Path == other.Path
}
