// Package relay defines the client side of the signaling relay.
package relay

import (
	"voicemesh/media"
	"voicemesh/participant"
)

// Relay carries signaling and membership traffic between this client and the
// rest of the channel. Implementations deliver inbound traffic through the
// broker; the methods here cover the outbound direction.
//
//go:generate mockgen -destination=mock_relay.go -package=relay . Relay
type Relay interface {
	// JoinChannel announces the local participant. The relay answers with a
	// roster snapshot.
	JoinChannel(channelID string) error

	// LeaveChannel announces departure from the channel.
	LeaveChannel(channelID string) error

	// SendOffer addresses a session offer to one participant.
	SendOffer(target participant.ID, sdp string) error

	// SendAnswer addresses a session answer to one participant.
	SendAnswer(target participant.ID, sdp string) error

	// SendCandidate addresses one connectivity candidate to one participant.
	SendCandidate(target participant.ID, candidate media.Candidate) error

	// SetMute publishes the local mute flag.
	SetMute(muted bool) error

	// SetDeafen publishes the local deafen flag.
	SetDeafen(deafened bool) error

	// SpeakingChanged publishes the local speaking indicator.
	SpeakingChanged(speaking bool) error

	// Close tears down the transport.
	Close() error
}
