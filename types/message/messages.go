// Package message provides data types for broker events.
package message

import (
	"voicemesh/media"
	"voicemesh/participant"
)

// Member is the advisory state of one channel participant.
type Member struct {
	ID       participant.ID
	Muted    bool
	Deafened bool
}

// Roster is the full membership snapshot for a channel. Snapshots replace
// local state entirely.
type Roster struct {
	ChannelID string
	Members   []Member
}

// MemberJoined is published when a participant enters the channel.
type MemberJoined struct {
	ChannelID string
	Member    Member
}

// MemberLeft is published when a participant leaves the channel.
type MemberLeft struct {
	ChannelID string
	ID        participant.ID
}

// MemberState is published when a participant's mute/deafen flags change.
type MemberState struct {
	ChannelID string
	ID        participant.ID
	Muted     bool
	Deafened  bool
}

// MemberSpeaking is published when a participant's speaking indicator changes.
type MemberSpeaking struct {
	ChannelID string
	ID        participant.ID
	Speaking  bool
}

// Offer is an incoming session offer. Target is nil when the relay broadcast
// the message channel-wide.
type Offer struct {
	From   participant.ID
	Target *participant.ID
	SDP    string
}

// Answer is an incoming session answer.
type Answer struct {
	From   participant.ID
	Target *participant.ID
	SDP    string
}

// Ice is an incoming connectivity candidate.
type Ice struct {
	From      participant.ID
	Target    *participant.ID
	Candidate media.Candidate
}

// PeerConnected is published by the media engine's lifecycle callback.
type PeerConnected struct {
	ID participant.ID
}

// PeerFailed is published on a fatal transport error for one peer.
type PeerFailed struct {
	ID participant.ID
}

// PeerDisconnected is published on a possibly transient connectivity loss.
type PeerDisconnected struct {
	ID participant.ID
}

// TransportConnected is published when the relay transport (re)connects.
type TransportConnected struct{}

// TransportDisconnected is published when the relay transport drops.
type TransportDisconnected struct{}
