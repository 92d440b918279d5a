package speaking

import (
	"fmt"
	"time"
)

// Default values for speaking detection configuration.
const (
	DefaultInterval  = 100 * time.Millisecond
	DefaultThreshold = 0.1
)

// Config defines how audio levels are sampled and judged.
type Config struct {
	Interval  time.Duration // How often the level is sampled
	Threshold float64       // Level at or above which the participant is speaking
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("invalid sample interval: %s", c.Interval)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("invalid speaking threshold: %f", c.Threshold)
	}
	return nil
}

// IsSame checks if the config is the same as the other config.
func (c Config) IsSame(other Config) bool {
	return c.Interval == other.Interval && c.Threshold == other.Threshold
}
