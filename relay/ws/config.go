package ws

import (
	"fmt"
	"time"
)

// Default values for relay transport configuration.
const (
	DefaultPath           = "/ws"
	DefaultDialTimeout    = 5 * time.Second
	DefaultRedialInterval = 2 * time.Second
)

// Config defines how the client reaches the relay.
type Config struct {
	URL            string        // Relay host:port
	Path           string        // WebSocket endpoint path
	DialTimeout    time.Duration // Handshake timeout per dial attempt
	RedialInterval time.Duration // Pause between reconnect attempts
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("relay URL must not be empty")
	}
	if c.Path == "" {
		return fmt.Errorf("relay path must not be empty")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("invalid dial timeout: %s", c.DialTimeout)
	}
	if c.RedialInterval <= 0 {
		return fmt.Errorf("invalid redial interval: %s", c.RedialInterval)
	}
	return nil
}

// IsSame checks if the config is the same as the other config.
func (c Config) IsSame(other Config) bool {
	return c.URL == other.URL &&
		c.Path == other.Path &&
		c.DialTimeout == other.DialTimeout &&
		c.RedialInterval == other.RedialInterval
}
