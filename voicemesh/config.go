package voicemesh

import (
	"fmt"

	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/relay/ws"
	"voicemesh/speaking"
)

// Config contains the configuration for a voicemesh client.
type Config struct {
	ClientNum uint64 // Numeric identity; drives the signaling tie-break
	Handle    string // Display name shown to other participants
	Relay     ws.Config
	Media     media.Config
	Metrics   metric.Config
	Speaking  speaking.Config
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.ClientNum == 0 {
		return fmt.Errorf("client id must not be zero")
	}
	if c.Handle == "" {
		return fmt.Errorf("handle must not be empty")
	}
	if err := c.Relay.Validate(); err != nil {
		return err
	}
	if err := c.Media.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Speaking.Validate()
}
