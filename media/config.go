// Package media wraps the point-to-point transport primitive.
package media

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServer is used when no ICE servers are configured.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// Config defines the configuration for the media engine.
type Config struct {
	STUNServers []string // STUN server URLs for ICE
	MinUDPPort  uint16   // Minimum UDP port, 0 means unrestricted
	MaxUDPPort  uint16   // Maximum UDP port, 0 means unrestricted
}

// Validate checks the UDP port range.
func (c Config) Validate() error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if c.MinUDPPort > c.MaxUDPPort {
		return fmt.Errorf("invalid port range: MinUDPPort (%d) > MaxUDPPort (%d)", c.MinUDPPort, c.MaxUDPPort)
	}
	return nil
}

// SetPortRange applies the ephemeral UDP port range to the setting engine.
func (c Config) SetPortRange(s *webrtc.SettingEngine) error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.SetEphemeralUDPPortRange(c.MinUDPPort, c.MaxUDPPort); err != nil {
		return fmt.Errorf("failed to set ephemeral UDP port range: %w", err)
	}
	return nil
}

// iceServers builds the webrtc ICE server list, falling back to the default
// public STUN server.
func (c Config) iceServers() []webrtc.ICEServer {
	urls := c.STUNServers
	if len(urls) == 0 {
		urls = []string{DefaultSTUNServer}
	}
	return []webrtc.ICEServer{{URLs: urls}}
}
