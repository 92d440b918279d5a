// Package request contains the wire types this client emits to the relay.
package request

import "encoding/json"

// Constants for request types.
const (
	JOIN     = "JOIN"
	LEAVE    = "LEAVE"
	OFFER    = "OFFER"
	ANSWER   = "ANSWER"
	ICE      = "ICE"
	MUTE     = "MUTE"
	DEAFEN   = "DEAFEN"
	SPEAKING = "SPEAKING"
)

// Common is the envelope wrapping every request.
type Common struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Join announces the local participant entering a channel. The relay answers
// with a roster snapshot.
type Join struct {
	ChannelID string `json:"channel_id"`
	ClientNum uint64 `json:"client_id"`
	Handle    string `json:"handle"`
	Nonce     string `json:"nonce"`
}

// Leave announces departure from a channel.
type Leave struct {
	ChannelID string `json:"channel_id"`
}

// Offer carries a session offer to one addressed participant.
type Offer struct {
	TargetNum uint64 `json:"target"`
	SDP       string `json:"sdp"`
}

// Answer carries a session answer to one addressed participant.
type Answer struct {
	TargetNum uint64 `json:"target"`
	SDP       string `json:"sdp"`
}

// Ice carries one connectivity candidate to one addressed participant. The
// candidate payload is opaque to the relay.
type Ice struct {
	TargetNum uint64          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

// Mute publishes the local mute flag.
type Mute struct {
	Muted bool `json:"muted"`
}

// Deafen publishes the local deafen flag.
type Deafen struct {
	Deafened bool `json:"deafened"`
}

// Speaking publishes the local speaking indicator.
type Speaking struct {
	Speaking bool `json:"speaking"`
}
